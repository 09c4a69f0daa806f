package perftypes

import (
	"fmt"
)

// CacheID is the cache tier of a PERF_TYPE_HW_CACHE event.
// https://elixir.bootlin.com/linux/latest/source/include/uapi/linux/perf_event.h#L72
type CacheID uint64

const (
	// PERF_COUNT_HW_CACHE_L1D for measuring Level 1 Data Cache
	PERF_COUNT_HW_CACHE_L1D CacheID = iota
	// PERF_COUNT_HW_CACHE_L1I for measuring Level 1 Instruction Cache
	PERF_COUNT_HW_CACHE_L1I
	// PERF_COUNT_HW_CACHE_LL for measuring Last-Level Cache
	PERF_COUNT_HW_CACHE_LL
	// PERF_COUNT_HW_CACHE_DTLB for measuring the Data TLB
	PERF_COUNT_HW_CACHE_DTLB
	// PERF_COUNT_HW_CACHE_ITLB for measuring the Instruction TLB
	PERF_COUNT_HW_CACHE_ITLB
	// PERF_COUNT_HW_CACHE_BPU for measuring the branch prediction unit
	PERF_COUNT_HW_CACHE_BPU

	cacheIDMax
)

// CacheOp is the operation of a PERF_TYPE_HW_CACHE event.
type CacheOp uint64

const (
	// PERF_COUNT_HW_CACHE_OP_READ for read accesses
	PERF_COUNT_HW_CACHE_OP_READ CacheOp = iota
	// PERF_COUNT_HW_CACHE_OP_WRITE for write accesses
	PERF_COUNT_HW_CACHE_OP_WRITE
	// PERF_COUNT_HW_CACHE_OP_PREFETCH for prefetch accesses
	PERF_COUNT_HW_CACHE_OP_PREFETCH

	cacheOpMax
)

// CacheResult is the result of a PERF_TYPE_HW_CACHE event.
type CacheResult uint64

const (
	// PERF_COUNT_HW_CACHE_RESULT_ACCESS to measure accesses
	PERF_COUNT_HW_CACHE_RESULT_ACCESS CacheResult = iota
	// PERF_COUNT_HW_CACHE_RESULT_MISS to measure misses
	PERF_COUNT_HW_CACHE_RESULT_MISS

	cacheResultMax
)

// Each component of the config occupies one byte, the bits above the result byte must be zero.
const (
	cacheOpShift     = 8
	cacheResultShift = 16
	cacheFieldMask   = 0xff
	cacheConfigMask  = 0xffffff
)

var cacheIDToString = map[CacheID]string{
	PERF_COUNT_HW_CACHE_L1D:  "L1-dcache",
	PERF_COUNT_HW_CACHE_L1I:  "L1-icache",
	PERF_COUNT_HW_CACHE_LL:   "LLC",
	PERF_COUNT_HW_CACHE_DTLB: "dTLB",
	PERF_COUNT_HW_CACHE_ITLB: "iTLB",
	PERF_COUNT_HW_CACHE_BPU:  "branch",
}

func (c CacheID) String() string {
	if str, ok := cacheIDToString[c]; ok {
		return str
	}
	return fmt.Sprintf("cache(%d)", uint64(c))
}

var cacheOpToString = map[CacheOp]string{
	PERF_COUNT_HW_CACHE_OP_READ:     "load",
	PERF_COUNT_HW_CACHE_OP_WRITE:    "store",
	PERF_COUNT_HW_CACHE_OP_PREFETCH: "prefetch",
}

func (o CacheOp) String() string {
	if str, ok := cacheOpToString[o]; ok {
		return str
	}
	return fmt.Sprintf("op(%d)", uint64(o))
}

// The perf tool writes accesses as the plural of the op, "L1-dcache-loads" instead of "L1-dcache-load-refs"
var cacheOpToPlural = map[CacheOp]string{
	PERF_COUNT_HW_CACHE_OP_READ:     "loads",
	PERF_COUNT_HW_CACHE_OP_WRITE:    "stores",
	PERF_COUNT_HW_CACHE_OP_PREFETCH: "prefetches",
}

func (r CacheResult) String() string {
	switch r {
	case PERF_COUNT_HW_CACHE_RESULT_ACCESS:
		return "refs"
	case PERF_COUNT_HW_CACHE_RESULT_MISS:
		return "misses"
	}
	return fmt.Sprintf("result(%d)", uint64(r))
}

// CacheEvent is a (tier, operation, result) triple measured with PERF_TYPE_HW_CACHE.
type CacheEvent struct {
	Cache  CacheID
	Op     CacheOp
	Result CacheResult
}

func (e CacheEvent) Type() Type { return PERF_TYPE_HW_CACHE }
func (e CacheEvent) isEvent()   {}

// Config returns the packed config value. The event must be valid, use PackCache to get an error for out of range
// components.
func (e CacheEvent) Config() uint64 {
	return uint64(e.Cache) | uint64(e.Op)<<cacheOpShift | uint64(e.Result)<<cacheResultShift
}

func (e CacheEvent) valid() bool {
	return e.Cache < cacheIDMax && e.Op < cacheOpMax && e.Result < cacheResultMax
}

func (e CacheEvent) String() string {
	if e.Result == PERF_COUNT_HW_CACHE_RESULT_ACCESS {
		if plural, ok := cacheOpToPlural[e.Op]; ok {
			return e.Cache.String() + "-" + plural
		}
	}

	return e.Cache.String() + "-" + e.Op.String() + "-" + e.Result.String()
}

// Generic returns true if the perf tool lists the tier/op combination as a generic cache event. Not all tiers
// support all operations, the kernel will refuse to open those with ENOENT on most PMUs.
// Based on tools/perf/util/evsel.c:evsel__hw_cache_stat
func (e CacheEvent) Generic() bool {
	return cacheAllowedOps[e.Cache]&(1<<e.Op) != 0
}

const (
	cacheOpAllowRead     = 1 << PERF_COUNT_HW_CACHE_OP_READ
	cacheOpAllowWrite    = 1 << PERF_COUNT_HW_CACHE_OP_WRITE
	cacheOpAllowPrefetch = 1 << PERF_COUNT_HW_CACHE_OP_PREFETCH
)

var cacheAllowedOps = map[CacheID]uint8{
	PERF_COUNT_HW_CACHE_L1D:  cacheOpAllowRead | cacheOpAllowWrite | cacheOpAllowPrefetch,
	PERF_COUNT_HW_CACHE_L1I:  cacheOpAllowRead | cacheOpAllowPrefetch,
	PERF_COUNT_HW_CACHE_LL:   cacheOpAllowRead | cacheOpAllowWrite | cacheOpAllowPrefetch,
	PERF_COUNT_HW_CACHE_DTLB: cacheOpAllowRead | cacheOpAllowWrite | cacheOpAllowPrefetch,
	PERF_COUNT_HW_CACHE_ITLB: cacheOpAllowRead,
	PERF_COUNT_HW_CACHE_BPU:  cacheOpAllowRead,
}

// PackCache packs a cache tier, operation and result into a PERF_TYPE_HW_CACHE config value using the kernel
// encoding: tier | (op << 8) | (result << 16).
func PackCache(cache CacheID, op CacheOp, result CacheResult) (uint64, error) {
	ev := CacheEvent{Cache: cache, Op: op, Result: result}
	if !ev.valid() {
		return 0, fmt.Errorf("%w: tier %d, op %d, result %d", ErrInvalidCachePacking, cache, op, result)
	}

	return ev.Config(), nil
}

// UnpackCache is the inverse of PackCache. An error is returned if any of the components is out of range or if
// bits above the result byte are set.
func UnpackCache(config uint64) (CacheEvent, error) {
	if config&^cacheConfigMask != 0 {
		return CacheEvent{}, fmt.Errorf("%w: reserved bits set in 0x%x", ErrInvalidCachePacking, config)
	}

	ev := CacheEvent{
		Cache:  CacheID(config & cacheFieldMask),
		Op:     CacheOp((config >> cacheOpShift) & cacheFieldMask),
		Result: CacheResult((config >> cacheResultShift) & cacheFieldMask),
	}
	if !ev.valid() {
		return CacheEvent{}, fmt.Errorf("%w: tier %d, op %d, result %d", ErrInvalidCachePacking, ev.Cache, ev.Op, ev.Result)
	}

	return ev, nil
}
