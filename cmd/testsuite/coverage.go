package main

import (
	"fmt"
	"sort"

	"golang.org/x/tools/cover"
)

type fileCoverage struct {
	FileName   string
	Statements int
	Covered    int
}

func (fc fileCoverage) Percent() float64 {
	if fc.Statements == 0 {
		return 0
	}

	return float64(fc.Covered) / float64(fc.Statements) * 100
}

func totalCoverage(files []fileCoverage) fileCoverage {
	total := fileCoverage{FileName: "total"}
	for _, fc := range files {
		total.Statements += fc.Statements
		total.Covered += fc.Covered
	}

	return total
}

type blockPos struct {
	startLine, startCol, endLine, endCol int
}

// summarizeCoverage merges the given coverage profiles and returns the statement coverage per file. A block which
// occurs in multiple profiles is covered if any of the profiles covered it.
func summarizeCoverage(profilePaths []string) ([]fileCoverage, error) {
	var profiles []*cover.Profile
	for _, p := range profilePaths {
		parsed, err := cover.ParseProfiles(p)
		if err != nil {
			return nil, fmt.Errorf("parse coverage profile '%s': %w", p, err)
		}
		profiles = append(profiles, parsed...)
	}

	return mergeProfiles(profiles), nil
}

func mergeProfiles(profiles []*cover.Profile) []fileCoverage {
	type block struct {
		stmts   int
		covered bool
	}

	files := make(map[string]map[blockPos]block)
	for _, profile := range profiles {
		blocks := files[profile.FileName]
		if blocks == nil {
			blocks = make(map[blockPos]block)
			files[profile.FileName] = blocks
		}

		for _, b := range profile.Blocks {
			pos := blockPos{b.StartLine, b.StartCol, b.EndLine, b.EndCol}
			cur := blocks[pos]
			cur.stmts = b.NumStmt
			cur.covered = cur.covered || b.Count > 0
			blocks[pos] = cur
		}
	}

	result := make([]fileCoverage, 0, len(files))
	for name, blocks := range files {
		fc := fileCoverage{FileName: name}
		for _, b := range blocks {
			fc.Statements += b.stmts
			if b.covered {
				fc.Covered += b.stmts
			}
		}
		result = append(result, fc)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FileName < result[j].FileName
	})

	return result
}
