package replaytest

// OpGenConfig configures the operation generator. Rates are percentages
// (0-100) and need not sum to 100: unmatched rolls fall through to OpStore.
type OpGenConfig struct {
	RegisterMappingRate int
	RemoveMappingRate   int
	AddLogRegionRate    int
	RemoveLogRegionRate int
	FlushRate           int
	FenceRate           int
	CommitRate          int
	SBEnterRate         int

	// AddrSpace bounds generated addresses, kept small so stores and
	// mappings collide often enough to exercise overlap/eviction/flush
	// fragmentation paths instead of mostly missing each other.
	AddrSpace uint64
	// MaxSize bounds generated interval sizes.
	MaxSize uint64
}

// DefaultOpGenConfig returns a balanced configuration biased toward a small
// address space so generated intervals collide.
func DefaultOpGenConfig() OpGenConfig {
	return OpGenConfig{
		RegisterMappingRate: 8,
		RemoveMappingRate:   4,
		AddLogRegionRate:    4,
		RemoveLogRegionRate: 2,
		FlushRate:           15,
		FenceRate:           10,
		CommitRate:          10,
		SBEnterRate:         10,
		AddrSpace:           4096,
		MaxSize:             64,
	}
}

// OpGenerator generates deterministic [Op] values from a byte stream.
type OpGenerator struct {
	stream *ByteStream
	config OpGenConfig
}

// NewOpGenerator creates a generator driven by fuzzBytes, using cfg (or
// [DefaultOpGenConfig] if cfg is nil).
func NewOpGenerator(fuzzBytes []byte, cfg *OpGenConfig) *OpGenerator {
	c := DefaultOpGenConfig()
	if cfg != nil {
		c = *cfg
	}

	return &OpGenerator{stream: NewByteStream(fuzzBytes), config: c}
}

// HasMore reports whether more operations can be generated.
func (g *OpGenerator) HasMore() bool {
	return g.stream.HasMore()
}

// NextOp generates the next operation.
func (g *OpGenerator) NextOp() Op {
	roll := g.stream.NextInt(100)
	cfg := g.config

	switch {
	case roll < cfg.RegisterMappingRate:
		return Op{Kind: OpRegisterMapping, Addr: g.addr(), Size: g.size()}
	case roll < cfg.RegisterMappingRate+cfg.RemoveMappingRate:
		return Op{Kind: OpRemoveMapping, Addr: g.addr(), Size: g.size()}
	case roll < cfg.RegisterMappingRate+cfg.RemoveMappingRate+cfg.AddLogRegionRate:
		return Op{Kind: OpAddLogRegion, Addr: g.addr(), Size: g.size()}
	case roll < cfg.RegisterMappingRate+cfg.RemoveMappingRate+cfg.AddLogRegionRate+cfg.RemoveLogRegionRate:
		return Op{Kind: OpRemoveLogRegion, Addr: g.addr(), Size: g.size()}
	case roll < cfg.RegisterMappingRate+cfg.RemoveMappingRate+cfg.AddLogRegionRate+cfg.RemoveLogRegionRate+cfg.FlushRate:
		return Op{Kind: OpFlush, Addr: g.addr(), Size: g.size()}
	}

	afterFlush := cfg.RegisterMappingRate + cfg.RemoveMappingRate + cfg.AddLogRegionRate + cfg.RemoveLogRegionRate + cfg.FlushRate

	switch {
	case roll < afterFlush+cfg.FenceRate:
		return Op{Kind: OpFence}
	case roll < afterFlush+cfg.FenceRate+cfg.CommitRate:
		return Op{Kind: OpCommit}
	case roll < afterFlush+cfg.FenceRate+cfg.CommitRate+cfg.SBEnterRate:
		return Op{Kind: OpSBEnter}
	default:
		return Op{Kind: OpStore, Addr: g.addr(), Size: g.size(), Value: g.stream.NextUint64()}
	}
}

func (g *OpGenerator) addr() uint64 {
	if g.config.AddrSpace == 0 {
		return 0
	}

	return g.stream.NextUint64() % g.config.AddrSpace
}

func (g *OpGenerator) size() uint64 {
	if g.config.MaxSize == 0 {
		return 0
	}

	return 1 + g.stream.NextUint64()%g.config.MaxSize
}
