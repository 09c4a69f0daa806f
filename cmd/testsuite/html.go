package main

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// writeReport writes index.html and, if coverage is enabled, a HTML coverage page per test binary to dir.
func writeReport(dir, env string, results map[string]testResult, coverage []fileCoverage, profiles []string) error {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return fmt.Errorf("error while creating report dir: %w", err)
	}

	coverPages := make([]string, 0, len(profiles))
	for _, profile := range profiles {
		page := strings.TrimSuffix(filepath.Base(profile), ".test.cover") + ".cover.html"
		_, err = execCmd("go", "tool", "cover", "-html="+profile, "-o", filepath.Join(dir, page))
		if err != nil {
			return fmt.Errorf("error while rendering coverage: %w", err)
		}
		coverPages = append(coverPages, page)
	}

	f, err := os.Create(filepath.Join(dir, "index.html"))
	if err != nil {
		return fmt.Errorf("error while creating report: %w", err)
	}
	defer f.Close()

	return renderHTMLReport(env, results, coverage, coverPages, f)
}

func renderHTMLReport(
	env string,
	results map[string]testResult,
	coverage []fileCoverage,
	coverPages []string,
	out io.Writer,
) error {
	tpl := template.New("report")

	var err error
	tpl, err = tpl.Parse(htmlTpl)
	if err != nil {
		return fmt.Errorf("parse tpl: %w", err)
	}

	tests := make([]testResult, 0, len(results))
	for _, name := range sortedTestNames(results) {
		tests = append(tests, results[name])
	}

	err = tpl.Execute(out, htmlData{
		Env:          env,
		Tests:        tests,
		Coverage:     coverage,
		Total:        totalCoverage(coverage),
		CoverPages:   coverPages,
		FlagCoverage: flagCover,
	})
	if err != nil {
		return fmt.Errorf("execute tpl: %w", err)
	}

	return nil
}

type htmlData struct {
	Env          string
	Tests        []testResult
	Coverage     []fileCoverage
	Total        fileCoverage
	CoverPages   []string
	FlagCoverage bool
}

var htmlTpl = `<html>
	<head>
		<title>goperf test report</title>
		<style>
			.test-matrix {
				border-spacing: 0px;
			}

			.test-matrix td {
				padding: 4px;
				border-width: 1px 0px 0px 0px;
				border-style: solid;
			}

			td.PASS {
				background-color: #50CC50;
			}

			td.FAIL {
				background-color: #FF3333;
			}

			td.SKIP {
				background-color: #FFC107;
			}
		</style>
	</head>
	<body>
		<h1>goperf test report</h1>
		<p>{{.Env}}</p>
		<div>
			<h2>Tests</h2>
			<table class="test-matrix">
				<thead>
					<tr>
						<th>Package</th>
						<th>Test name</th>
						<th>Result</th>
						<th>Duration</th>
					</tr>
				</thead>
				<tbody>
				{{range $i, $test := .Tests}}
					<tr>
						<td>{{$test.Package}}</td>
						<td>{{$test.Name}}</td>
						<td class="{{$test.Status}}">{{$test.Status}}</td>
						<td>{{$test.Duration}}</td>
					</tr>
				{{end}}
				</tbody>
			</table>
		</div>
		{{if .FlagCoverage}}
		<div>
			<h2>Code coverage</h2>
			<table class="test-matrix">
				<tbody>
				{{range $i, $file := .Coverage}}
					<tr>
						<td>{{$file.FileName}}</td>
						<td>{{printf "%.1f" $file.Percent}}%</td>
					</tr>
				{{end}}
					<tr>
						<td><b>total</b></td>
						<td><b>{{printf "%.1f" .Total.Percent}}%</b></td>
					</tr>
				</tbody>
			</table>
			<ul>
			{{range $i, $page := .CoverPages}}
				<li><a href="./{{$page}}">{{$page}}</a></li>
			{{end}}
			</ul>
		</div>
		{{end}}
	</body>
</html>`
