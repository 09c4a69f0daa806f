package perftypes

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer/stateful"
)

// ErrInvalidEventName is returned by ParseEvent when the event description can't be parsed or doesn't name a
// known event.
var ErrInvalidEventName = errors.New("invalid event name")

var (
	eventLexer = stateful.MustSimple([]stateful.Rule{
		{Name: "Number", Pattern: `0[xX][0-9a-fA-F]+|[0-9]+`, Action: nil},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_\-]*`, Action: nil},
		{Name: "Punct", Pattern: `[:/]`, Action: nil},
		{Name: "Whitespace", Pattern: `[ \t]+`, Action: nil},
	})
	eventParser = participle.MustBuild(&eventExpr{},
		participle.Lexer(eventLexer),
		participle.Elide("Whitespace"),
		participle.UseLookahead(4),
	)
)

type eventExpr struct {
	Breakpoint *breakpointExpr `parser:"(  @@"`
	Name       string          `parser:" | @Ident )"`
	Modifiers  string          `parser:"( ':' @Ident )?"`
}

// mem:<addr>[/<len>][:<access>]
type breakpointExpr struct {
	Addr   string `parser:"'mem' ':' @Number"`
	Len    string `parser:"( '/' @Number )?"`
	Access string `parser:"( ':' @Ident )?"`
}

// ParseEvent parses an event description in the syntax used by the perf tool, for example "cycles",
// "L1-dcache-load-misses:u", "r1a8" or "mem:0x1000/8:w". The returned flags contain the exclude flags requested by
// the modifiers and should be combined with the other flags of the counter.
//
// Tracepoints ("category:name") can't be parsed since their ID has to be read from tracefs.
func ParseEvent(spec string) (Event, AttrFlags, error) {
	expr := &eventExpr{}
	err := eventParser.ParseString("", spec, expr)
	if err != nil {
		return nil, 0, fmt.Errorf("%w '%s': %w", ErrInvalidEventName, spec, err)
	}

	var ev Event
	if expr.Breakpoint != nil {
		// If no access type but modifiers are given, the parser puts the modifiers in the access field.
		if expr.Modifiers == "" && strings.Trim(expr.Breakpoint.Access, "rwx") != "" {
			expr.Modifiers = expr.Breakpoint.Access
			expr.Breakpoint.Access = ""
		}

		ev, err = expr.Breakpoint.toEvent()
	} else {
		ev, err = nameToEvent(expr.Name)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("'%s': %w", spec, err)
	}

	flags, err := modifierFlags(expr.Modifiers)
	if err != nil {
		return nil, 0, fmt.Errorf("'%s': %w", spec, err)
	}

	return ev, flags, nil
}

// MustParseEvent is ParseEvent but panics on error, only meant for package level variables and tests.
func MustParseEvent(spec string) Event {
	ev, _, err := ParseEvent(spec)
	if err != nil {
		panic(err)
	}
	return ev
}

func (bp *breakpointExpr) toEvent() (Event, error) {
	addr, err := strconv.ParseUint(bp.Addr, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: breakpoint address: %v", ErrInvalidEventName, err)
	}

	ev := BreakpointEvent{
		Addr:   addr,
		Access: HW_BREAKPOINT_RW,
	}

	if bp.Access != "" {
		ev.Access = HW_BREAKPOINT_EMPTY
		for _, c := range bp.Access {
			switch c {
			case 'r':
				ev.Access |= HW_BREAKPOINT_R
			case 'w':
				ev.Access |= HW_BREAKPOINT_W
			case 'x':
				ev.Access |= HW_BREAKPOINT_X
			}
		}
		if !ev.Access.Valid() {
			return nil, fmt.Errorf("%w: breakpoint access '%s' can't combine execute with read/write",
				ErrInvalidEventName, bp.Access)
		}
	}

	switch {
	case bp.Len != "":
		l, err := strconv.ParseUint(bp.Len, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: breakpoint length: %v", ErrInvalidEventName, err)
		}
		ev.Len = BreakpointLen(l)
	case ev.Access == HW_BREAKPOINT_X:
		// Execute breakpoints must be the size of a long
		ev.Len = BreakpointLen(strconv.IntSize / 8)
	default:
		ev.Len = HW_BREAKPOINT_LEN_4
	}

	if !ev.Len.Valid() {
		return nil, fmt.Errorf("%w: breakpoint length %d is not 1, 2, 4 or 8", ErrInvalidEventName, ev.Len)
	}

	return ev, nil
}

var rawEventName = regexp.MustCompile(`^r[0-9a-fA-F]+$`)

func nameToEvent(name string) (Event, error) {
	if ev, ok := namedEvents[name]; ok {
		return ev, nil
	}

	if ev, ok := parseCacheName(name); ok {
		if !ev.Generic() {
			return nil, fmt.Errorf("%w: '%s' is not a generic cache event", ErrInvalidEventName, name)
		}
		return ev, nil
	}

	if rawEventName.MatchString(name) {
		config, err := strconv.ParseUint(name[1:], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: raw event: %v", ErrInvalidEventName, err)
		}
		return RawEvent(config), nil
	}

	return nil, fmt.Errorf("%w: unknown event '%s'", ErrInvalidEventName, name)
}

// namedEvents contains all symbolic hardware and software event names and their aliases.
// Based on tools/perf/util/parse-events.c:event_symbols_hw and event_symbols_sw
var namedEvents = func() map[string]Event {
	events := make(map[string]Event)
	for e, name := range hwEventToString {
		events[name] = e
	}
	for e, name := range swEventToString {
		events[name] = e
	}

	events["cycles"] = PERF_COUNT_HW_CPU_CYCLES
	events["branches"] = PERF_COUNT_HW_BRANCH_INSTRUCTIONS
	events["faults"] = PERF_COUNT_SW_PAGE_FAULTS
	events["cs"] = PERF_COUNT_SW_CONTEXT_SWITCHES
	events["migrations"] = PERF_COUNT_SW_CPU_MIGRATIONS

	return events
}()

type cacheName struct {
	name  string
	value uint64
}

// sortCacheNames puts longer names first so "speculative-read" is matched before "read"
func sortCacheNames(names []cacheName) []cacheName {
	sort.SliceStable(names, func(i, j int) bool {
		return len(names[i].name) > len(names[j].name)
	})
	return names
}

// Based on tools/perf/util/evsel.c:evsel__hw_cache, evsel__hw_cache_op and evsel__hw_cache_result
var (
	cacheIDNames = sortCacheNames([]cacheName{
		{"L1-dcache", uint64(PERF_COUNT_HW_CACHE_L1D)},
		{"l1-d", uint64(PERF_COUNT_HW_CACHE_L1D)},
		{"l1d", uint64(PERF_COUNT_HW_CACHE_L1D)},
		{"L1-data", uint64(PERF_COUNT_HW_CACHE_L1D)},
		{"L1-icache", uint64(PERF_COUNT_HW_CACHE_L1I)},
		{"l1-i", uint64(PERF_COUNT_HW_CACHE_L1I)},
		{"l1i", uint64(PERF_COUNT_HW_CACHE_L1I)},
		{"L1-instruction", uint64(PERF_COUNT_HW_CACHE_L1I)},
		{"LLC", uint64(PERF_COUNT_HW_CACHE_LL)},
		{"L2", uint64(PERF_COUNT_HW_CACHE_LL)},
		{"dTLB", uint64(PERF_COUNT_HW_CACHE_DTLB)},
		{"d-tlb", uint64(PERF_COUNT_HW_CACHE_DTLB)},
		{"Data-TLB", uint64(PERF_COUNT_HW_CACHE_DTLB)},
		{"iTLB", uint64(PERF_COUNT_HW_CACHE_ITLB)},
		{"i-tlb", uint64(PERF_COUNT_HW_CACHE_ITLB)},
		{"Instruction-TLB", uint64(PERF_COUNT_HW_CACHE_ITLB)},
		{"branch", uint64(PERF_COUNT_HW_CACHE_BPU)},
		{"branches", uint64(PERF_COUNT_HW_CACHE_BPU)},
		{"bpu", uint64(PERF_COUNT_HW_CACHE_BPU)},
		{"btb", uint64(PERF_COUNT_HW_CACHE_BPU)},
		{"bpc", uint64(PERF_COUNT_HW_CACHE_BPU)},
	})
	cacheOpNames = sortCacheNames([]cacheName{
		{"load", uint64(PERF_COUNT_HW_CACHE_OP_READ)},
		{"loads", uint64(PERF_COUNT_HW_CACHE_OP_READ)},
		{"read", uint64(PERF_COUNT_HW_CACHE_OP_READ)},
		{"store", uint64(PERF_COUNT_HW_CACHE_OP_WRITE)},
		{"stores", uint64(PERF_COUNT_HW_CACHE_OP_WRITE)},
		{"write", uint64(PERF_COUNT_HW_CACHE_OP_WRITE)},
		{"prefetch", uint64(PERF_COUNT_HW_CACHE_OP_PREFETCH)},
		{"prefetches", uint64(PERF_COUNT_HW_CACHE_OP_PREFETCH)},
		{"speculative-read", uint64(PERF_COUNT_HW_CACHE_OP_PREFETCH)},
		{"speculative-load", uint64(PERF_COUNT_HW_CACHE_OP_PREFETCH)},
	})
	cacheResultNames = sortCacheNames([]cacheName{
		{"refs", uint64(PERF_COUNT_HW_CACHE_RESULT_ACCESS)},
		{"Reference", uint64(PERF_COUNT_HW_CACHE_RESULT_ACCESS)},
		{"ops", uint64(PERF_COUNT_HW_CACHE_RESULT_ACCESS)},
		{"access", uint64(PERF_COUNT_HW_CACHE_RESULT_ACCESS)},
		{"misses", uint64(PERF_COUNT_HW_CACHE_RESULT_MISS)},
		{"miss", uint64(PERF_COUNT_HW_CACHE_RESULT_MISS)},
	})
)

// matchCacheName matches s against the names, the name must either be the whole string or be followed by a '-'.
// The remainder of the string after the '-' is returned.
func matchCacheName(s string, names []cacheName) (uint64, string, bool) {
	for _, n := range names {
		if s == n.name {
			return n.value, "", true
		}
		if strings.HasPrefix(s, n.name) && s[len(n.name)] == '-' {
			return n.value, s[len(n.name)+1:], true
		}
	}
	return 0, "", false
}

// parseCacheName parses "<tier>[-<op>][-<result>]", the op defaults to read and the result to access.
func parseCacheName(name string) (CacheEvent, bool) {
	tier, rest, ok := matchCacheName(name, cacheIDNames)
	if !ok {
		return CacheEvent{}, false
	}

	ev := CacheEvent{
		Cache:  CacheID(tier),
		Op:     PERF_COUNT_HW_CACHE_OP_READ,
		Result: PERF_COUNT_HW_CACHE_RESULT_ACCESS,
	}

	var haveOp, haveResult bool
	for i := 0; i < 2 && rest != ""; i++ {
		if !haveOp {
			if op, r, ok := matchCacheName(rest, cacheOpNames); ok {
				ev.Op, rest, haveOp = CacheOp(op), r, true
				continue
			}
		}
		if !haveResult {
			if result, r, ok := matchCacheName(rest, cacheResultNames); ok {
				ev.Result, rest, haveResult = CacheResult(result), r, true
				continue
			}
		}
	}

	if rest != "" {
		return CacheEvent{}, false
	}

	return ev, true
}

// modifierFlags converts perf event modifiers into exclude flags. If any of the privilege levels u, k or h is
// given, all levels which are not given are excluded.
func modifierFlags(modifiers string) (AttrFlags, error) {
	var user, kernel, hv, noIdle bool
	for _, m := range modifiers {
		switch m {
		case 'u':
			user = true
		case 'k':
			kernel = true
		case 'h':
			hv = true
		case 'I':
			noIdle = true
		default:
			return 0, fmt.Errorf("%w: unknown modifier '%c'", ErrInvalidEventName, m)
		}
	}

	var flags AttrFlags
	if user || kernel || hv {
		if !user {
			flags |= AttrFlagsExcludeUser
		}
		if !kernel {
			flags |= AttrFlagsExcludeKernel
		}
		if !hv {
			flags |= AttrFlagsExcludeHV
		}
	}

	if noIdle {
		flags |= AttrFlagsExcludeIdle
	}

	return flags, nil
}
