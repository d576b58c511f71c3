package runtime

import (
	"testing"

	"github.com/chazu/marten/pkg/gc"
)

func TestMinorSweepsUnreachableTables(t *testing.T) {
	s := NewState()

	for i := 0; i < 1000; i++ {
		s.NewTable(gc.Gen0)
	}
	gen1Before := s.GC().Stats().Gen1Count

	s.CheckGC()

	st := s.GC().Stats()
	if st.Gen0Count != 0 {
		t.Errorf("gen0 count after CheckGC = %d, want 0", st.Gen0Count)
	}
	if st.Gen1Count != gen1Before {
		t.Errorf("gen1 count changed: %d -> %d", gen1Before, st.Gen1Count)
	}
}

func TestReachableTablePromotion(t *testing.T) {
	s := NewState()
	g := s.GC()

	tbl := s.NewTable(gc.Gen0)
	key := StringValue(s.NewString("keep"))
	if err := s.Global().SetValue(g, key, TableValue(tbl)); err != nil {
		t.Fatal(err)
	}

	g.CollectMinor()
	if got := tbl.Generation(); got != gc.Gen1 {
		t.Fatalf("reachable table after first minor = %v, want gen1", got)
	}

	g.CollectMinor()
	if got := tbl.Generation(); got != gc.Gen1 {
		t.Errorf("table after second minor = %v, want gen1 (no re-promotion)", got)
	}
}

func TestOldToYoungBarrierThroughSetValue(t *testing.T) {
	s := NewState()
	g := s.GC()

	// The global table is old; SetValue applies the barrier itself, so a
	// young referent stored into it survives the next minor collection.
	young := s.NewTable(gc.Gen0)
	key := StringValue(s.NewString("b"))
	if err := s.Global().SetValue(g, key, TableValue(young)); err != nil {
		t.Fatal(err)
	}

	// Interner and global-table keys aside, nothing else keeps the young
	// table alive: only the barriered global reference can.
	g.CollectMinor()

	if got := young.Generation(); got != gc.Gen1 {
		t.Errorf("young referent after minor = %v, want gen1", got)
	}

	// Dropping the reference makes both key string and table garbage for
	// the next major collection.
	if err := s.Global().SetValue(g, key, NilValue()); err != nil {
		t.Fatal(err)
	}
	g.CollectMajor()
	if got := young.Generation(); got == gc.Gen1 || got == gc.Gen2 {
		t.Errorf("dropped table survived major collection in %v", got)
	}
}

func TestMissingBarrierLosesYoungReferent(t *testing.T) {
	s := NewState()
	g := s.GC()

	old := s.NewTable(gc.Gen2)
	key := StringValue(s.NewString("holder"))
	if err := s.Global().SetValue(g, key, TableValue(old)); err != nil {
		t.Fatal(err)
	}

	young := s.NewTable(gc.Gen0)
	// Raw write bypassing SetValue and therefore the barrier: the young
	// table must NOT survive, demonstrating why the barrier is mandatory.
	old.hash = map[Value]Value{NumberValue(1): TableValue(young)}

	g.CollectMinor()

	if got := young.Generation(); got == gc.Gen1 {
		t.Error("unbarriered young referent survived minor collection")
	}
}

func TestOperandStackIsRoot(t *testing.T) {
	s := NewState()

	tbl := s.NewTable(gc.Gen0)
	s.Stack().Push(TableValue(tbl))

	s.GC().CollectMinor()
	if got := tbl.Generation(); got != gc.Gen1 {
		t.Errorf("stack-referenced table = %v, want gen1", got)
	}

	// Popping below the value abandons it; the next collections reap it.
	s.Stack().SetTop(0)
	s.GC().CollectMajor()
	st := s.GC().Stats()
	if st.Gen1Count != 0 {
		t.Errorf("abandoned stack value still alive: %+v", st)
	}
}

func TestInternerDeduplicatesAndWeakens(t *testing.T) {
	s := NewState()

	a := s.NewString("shared")
	b := s.NewString("shared")
	if a != b {
		t.Error("interner returned distinct objects for equal content")
	}
	if s.Interner().Len() != 1 {
		t.Errorf("interner size = %d, want 1", s.Interner().Len())
	}

	// Nothing references the string; a minor collection must reap it and
	// the interner entry with it.
	s.GC().CollectMinor()
	if s.Interner().Len() != 0 {
		t.Errorf("interner kept a dead string: size = %d", s.Interner().Len())
	}

	// Re-interning after the sweep allocates a fresh object.
	c := s.NewString("shared")
	if c == a {
		t.Error("interner resurrected a destroyed string object")
	}
}

func TestClosureTracesPrototypeAndUpvalues(t *testing.T) {
	s := NewState()
	g := s.GC()

	proto := s.NewFunction()
	proto.SetBaseInfo(g, s.NewString("chunk"), 0)

	cl := s.NewClosure()
	cl.SetPrototype(g, proto)
	cl.AddUpvalue(g, TableValue(s.Global()), UpvalueStack)
	s.Stack().Push(ClosureValue(cl))

	g.CollectMinor()

	if got := cl.Generation(); got != gc.Gen1 {
		t.Errorf("closure = %v, want gen1", got)
	}
	if got := proto.Module().Generation(); got != gc.Gen1 {
		t.Errorf("module name string = %v, want gen1 (kept via prototype)", got)
	}
	if len(cl.Upvalues()) != 1 || cl.Upvalues()[0].Kind != UpvalueStack {
		t.Errorf("upvalues = %+v, want one Stack-kind upvalue", cl.Upvalues())
	}
}

func TestTableNilKeyRejected(t *testing.T) {
	s := NewState()
	tbl := s.NewTable(gc.Gen0)
	if err := tbl.SetValue(s.GC(), NilValue(), NumberValue(1)); err == nil {
		t.Error("nil key accepted")
	}
}

func TestFunctionConstPools(t *testing.T) {
	s := NewState()
	g := s.GC()
	f := s.NewFunction()

	i1 := f.AddConstNumber(1)
	i2 := f.AddConstNumber(2)
	i1again := f.AddConstNumber(1)
	if i1 == i2 {
		t.Error("distinct numbers share a directory index")
	}
	if i1 != i1again {
		t.Errorf("equal numbers got distinct indexes: %d vs %d", i1, i1again)
	}

	hi := s.NewString("hi")
	s1 := f.AddConstString(g, hi)
	s2 := f.AddConstString(g, s.NewString("hi"))
	if s1 != s2 {
		t.Errorf("interned string added twice: %d vs %d", s1, s2)
	}

	if got := len(f.ConstNumbers()); got != 2 {
		t.Errorf("number pool size = %d, want 2", got)
	}
	if got := len(f.ConstStrings()); got != 1 {
		t.Errorf("string pool size = %d, want 1", got)
	}
	if got := len(f.Consts()); got != 3 {
		t.Errorf("directory size = %d, want 3", got)
	}

	ref := f.Consts()[s1]
	if ref.Kind != ConstString || ref.Index != 0 {
		t.Errorf("string directory entry = %+v", ref)
	}
}

func TestFunctionRegisterWatermark(t *testing.T) {
	s := NewState()
	f := s.NewFunction()

	if f.GetNextRegister() != 0 {
		t.Fatalf("fresh watermark = %d", f.GetNextRegister())
	}
	r0 := f.AllocaNextRegister()
	r1 := f.AllocaNextRegister()
	if r0 != 0 || r1 != 1 || f.GetNextRegister() != 2 {
		t.Errorf("alloca sequence wrong: r0=%d r1=%d next=%d", r0, r1, f.GetNextRegister())
	}
	f.SetNextRegister(0)
	if f.GetNextRegister() != 0 {
		t.Errorf("watermark not restored: %d", f.GetNextRegister())
	}
}

func TestPrototypeStringConstBarrier(t *testing.T) {
	s := NewState()
	g := s.GC()

	// A prototype is old from birth; adding a young string constant must
	// barrier the prototype so the string survives minor collections.
	f := s.NewFunction()
	str := s.NewString("const")
	f.AddConstString(g, str)

	g.CollectMinor()
	if got := str.Generation(); got != gc.Gen1 {
		t.Errorf("prototype string constant = %v, want gen1", got)
	}
}
