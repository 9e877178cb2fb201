package agent

import (
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	engine "github.com/CaptainGlac1er/rocket-learn/engine"
)

// testPads is a small mirror-symmetric catalog: two large pads, two small.
var testPads = []mgl64.Vec3{
	{-3072, -4096, 73},
	{0, -1024, 70},
	{0, 1024, 70},
	{3072, 4096, 73},
}

func newTestBuilder(t testing.TB, maxPlayers int) *ObsBuilder {
	t.Helper()
	b, err := NewObsBuilder(maxPlayers, engine.NewBoostPadCatalog(testPads))
	if err != nil {
		t.Fatalf("NewObsBuilder: %v", err)
	}
	return b
}

// car builds a moving, rotated car so every kinematic field is non-zero.
func car(id int32, team engine.Team, x, y float64) engine.PlayerData {
	p := engine.NewPlayerData(id, team, engine.PhysicsObject{
		Position:        mgl64.Vec3{x, y, 17},
		LinearVelocity:  mgl64.Vec3{float64(id) * 10, -250, 0},
		AngularVelocity: mgl64.Vec3{0.5, -1, 2},
		Forward:         mgl64.Vec3{0, 1, 0},
		Up:              mgl64.Vec3{0, 0, 1},
	})
	p.BoostAmount = 0.5
	p.OnGround = true
	p.HasFlip = id%2 == 0
	return p
}

func newTestState(players ...engine.PlayerData) engine.GameState {
	ball := engine.PhysicsObject{
		Position:        mgl64.Vec3{100, -200, 93},
		LinearVelocity:  mgl64.Vec3{0, 500, 120},
		AngularVelocity: mgl64.Vec3{1, 2, 3},
	}
	return engine.NewGameState(players, ball, []bool{true, false, true, false})
}

var testAction = []float32{1, -0.5, 0, 0.25, 0, 1, 1, 0}

func kindOf(t *testing.T, row []float32) (EntityKind, bool) {
	t.Helper()
	kind, ones := EntityKind(0), 0
	for k := 0; k < int(NumKinds); k++ {
		switch row[OffKind+k] {
		case 1:
			kind = EntityKind(k)
			ones++
		case 0:
		default:
			t.Errorf("kind slot %d = %v, want 0 or 1", k, row[OffKind+k])
		}
	}
	return kind, ones == 1
}

// TestConcreteScenario covers one player per team, four pads, full roster.
func TestConcreteScenario(t *testing.T) {
	b := newTestBuilder(t, 2)
	state := engine.NewGameState(
		[]engine.PlayerData{
			engine.NewPlayerData(0, engine.TeamBlue, engine.PhysicsObject{}),
			engine.NewPlayerData(1, engine.TeamOrange, engine.PhysicsObject{}),
		},
		engine.PhysicsObject{},
		[]bool{false, false, false, false},
	)
	b.Reset(&state)

	obs, err := b.BuildObs(&state.Players[0], &state, make([]float32, ActionDim))
	if err != nil {
		t.Fatalf("BuildObs: %v", err)
	}
	if len(obs.Entities) != 7 {
		t.Fatalf("rows: got %d, want 7", len(obs.Entities))
	}
	for j, v := range obs.Entities[0] {
		want := float32(0)
		if j == OffKind+int(KindBall) {
			want = 1
		}
		if v != want {
			t.Errorf("ball row[%d] = %v, want %v", j, v, want)
		}
	}
	for j, v := range obs.Entities[1] {
		want := float32(0)
		if j == OffKind+int(KindOpponent) {
			want = 1
		}
		if v != want {
			t.Errorf("opponent row[%d] = %v, want %v", j, v, want)
		}
	}
	for i, m := range obs.Mask {
		if m {
			t.Errorf("mask[%d] set on a full roster", i)
		}
	}
	if obs.Query[OffKind+int(KindMain)] != 1 {
		t.Errorf("query main flag not set")
	}
}

// TestQueryLayout checks every query field lands at its documented offset.
func TestQueryLayout(t *testing.T) {
	b := newTestBuilder(t, 6)
	p := car(3, engine.TeamBlue, 512, -1024)
	p.IsDemoed = true
	state := newTestState(p, car(4, engine.TeamOrange, 0, 0))

	obs, err := b.BuildObs(&state.Players[0], &state, testAction)
	if err != nil {
		t.Fatalf("BuildObs: %v", err)
	}
	q := obs.Query
	want := map[int]float32{
		OffKind + int(KindMain): 1,
		OffPos: 512, OffPos + 1: -1024, OffPos + 2: 17,
		OffVel: 30, OffVel + 1: -250, OffVel + 2: 0,
		OffForward + 1: 1,
		OffUp + 2:      1,
		OffAngVel: 0.5, OffAngVel + 1: -1, OffAngVel + 2: 2,
		OffBoost:    0.5,
		OffStatus:   1,
		OffOnGround: 1,
		OffHasFlip:  0,
	}
	for i := 0; i < OffAction; i++ {
		if q[i] != want[i] {
			t.Errorf("query[%d] = %v, want %v", i, q[i], want[i])
		}
	}
	for i, a := range testAction {
		if q[OffAction+i] != a {
			t.Errorf("query action[%d] = %v, want %v", i, q[OffAction+i], a)
		}
	}
	if got := obs.QueryBatch(); len(got) != 1 || got[0] != q {
		t.Errorf("QueryBatch: got %d rows", len(got))
	}
}

// TestEntityRowOrder verifies ball, other players in order, then pads.
func TestEntityRowOrder(t *testing.T) {
	b := newTestBuilder(t, 6)
	state := newTestState(
		car(0, engine.TeamBlue, 0, 0),
		car(1, engine.TeamOrange, 10, 10),
		car(2, engine.TeamBlue, 20, 20),
		car(3, engine.TeamOrange, 30, 30),
	)
	obs, err := b.BuildObs(&state.Players[2], &state, testAction)
	if err != nil {
		t.Fatalf("BuildObs: %v", err)
	}
	wantKinds := []EntityKind{KindBall, KindTeammate, KindOpponent, KindOpponent}
	for r, want := range wantKinds {
		got, ok := kindOf(t, obs.Entities[r][:])
		if !ok || got != want {
			t.Errorf("row %d kind = %v (exclusive %v), want %v", r, got, ok, want)
		}
	}
	// Car 0 sits at the origin; relative to car 2 it is at (-20, -20).
	if obs.Entities[1][OffPos] != -20 || obs.Entities[1][OffPos+1] != -20 {
		t.Errorf("row 1 position = %v, want (-20,-20)", obs.Entities[1][OffPos:OffPos+3])
	}
	base := 1 + b.MaxPlayers()
	for i := range testPads {
		got, ok := kindOf(t, obs.Entities[base+i][:])
		if !ok || got != KindBoost {
			t.Errorf("pad row %d kind = %v", base+i, got)
		}
	}
}

// TestBoostPadRows checks pickup amounts and occupancy in the status slot.
func TestBoostPadRows(t *testing.T) {
	b := newTestBuilder(t, 2)
	state := newTestState(car(0, engine.TeamBlue, 0, 0))
	obs, err := b.BuildObs(&state.Players[0], &state, testAction)
	if err != nil {
		t.Fatalf("BuildObs: %v", err)
	}
	base := 3
	var small, large float64 = engine.SmallPadBoost, engine.LargePadBoost
	wantBoost := []float32{float32(large), float32(small), float32(small), float32(large)}
	wantStatus := []float32{1, 0, 1, 0}
	for i := range testPads {
		row := obs.Entities[base+i]
		if row[OffBoost] != wantBoost[i] {
			t.Errorf("pad %d boost = %v, want %v", i, row[OffBoost], wantBoost[i])
		}
		if row[OffStatus] != wantStatus[i] {
			t.Errorf("pad %d status = %v, want %v", i, row[OffStatus], wantStatus[i])
		}
		for j := OffForward; j < OffBoost; j++ {
			if row[j] != 0 {
				t.Errorf("pad %d orientation[%d] = %v, want 0", i, j, row[j])
			}
		}
		if row[OffOnGround] != 0 || row[OffHasFlip] != 0 {
			t.Errorf("pad %d carries player flags", i)
		}
	}
}

// TestRowCountInvariant checks the shape for every roster size.
func TestRowCountInvariant(t *testing.T) {
	b := newTestBuilder(t, engine.MaxPlayers)
	players := []engine.PlayerData{}
	for n := 1; n <= engine.MaxPlayers; n++ {
		players = append(players, car(int32(n), engine.Team(n%2), float64(n), 0))
		state := newTestState(players...)
		obs, err := b.BuildObs(&state.Players[0], &state, testAction)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		want := 1 + engine.MaxPlayers + len(testPads)
		if len(obs.Entities) != want || len(obs.Mask) != want {
			t.Errorf("n=%d: rows=%d mask=%d, want %d", n, len(obs.Entities), len(obs.Mask), want)
		}
	}
}

// TestKindExclusivity checks every populated row has exactly one kind flag
// and that the main flag only appears in the query.
func TestKindExclusivity(t *testing.T) {
	b := newTestBuilder(t, 6)
	state := newTestState(
		car(0, engine.TeamBlue, 0, 0),
		car(1, engine.TeamBlue, 1, 1),
		car(2, engine.TeamOrange, 2, 2),
		car(3, engine.TeamOrange, 3, 3),
		car(4, engine.TeamOrange, 4, 4),
	)
	for i := range state.Players {
		obs, err := b.BuildObs(&state.Players[i], &state, testAction)
		if err != nil {
			t.Fatalf("observer %d: %v", i, err)
		}
		if k, ok := kindOf(t, obs.Query[:]); !ok || k != KindMain {
			t.Errorf("observer %d: query kind %v", i, k)
		}
		teammates, opponents := 0, 0
		for r, row := range obs.Entities {
			if r == len(state.Players) || obs.Mask[r] {
				continue // vacant slots
			}
			k, ok := kindOf(t, row[:])
			if !ok {
				t.Errorf("observer %d row %d: not exactly one kind flag", i, r)
			}
			if k == KindMain {
				t.Errorf("observer %d row %d: main flag in entity matrix", i, r)
			}
			switch k {
			case KindTeammate:
				teammates++
			case KindOpponent:
				opponents++
			}
		}
		me := state.Players[i].Team
		if want := state.CountTeam(me) - 1; teammates != want {
			t.Errorf("observer %d: %d teammates, want %d", i, teammates, want)
		}
		if want := len(state.Players) - state.CountTeam(me); opponents != want {
			t.Errorf("observer %d: %d opponents, want %d", i, opponents, want)
		}
	}
}

// TestRelativeFrame adds the observer back onto every populated row and
// compares with the absolute values from the selected frame.
func TestRelativeFrame(t *testing.T) {
	b := newTestBuilder(t, 4)
	state := newTestState(
		car(0, engine.TeamOrange, 1200.5, -830.25),
		car(1, engine.TeamBlue, -300, 2000),
		car(2, engine.TeamOrange, 64, 64),
	)
	obs, err := b.BuildObs(&state.Players[0], &state, testAction)
	if err != nil {
		t.Fatalf("BuildObs: %v", err)
	}
	const inverted = true
	abs := [][2]mgl64.Vec3{
		{state.InvertedBall.Position, state.InvertedBall.LinearVelocity},
		{state.Players[1].InvertedCarData.Position, state.Players[1].InvertedCarData.LinearVelocity},
		{state.Players[2].InvertedCarData.Position, state.Players[2].InvertedCarData.LinearVelocity},
	}
	rows := []int{0, 1, 2}
	for i := range testPads {
		abs = append(abs, [2]mgl64.Vec3{testPads[i], {}})
		rows = append(rows, 1+b.MaxPlayers()+i)
	}
	me := state.Players[0].Physics(inverted)
	for k, r := range rows {
		for j := 0; j < 3; j++ {
			gotPos := float64(obs.Entities[r][OffPos+j] + obs.Query[OffPos+j])
			gotVel := float64(obs.Entities[r][OffVel+j] + obs.Query[OffVel+j])
			if math.Abs(gotPos-abs[k][0][j]) > 1e-2 {
				t.Errorf("row %d pos[%d]: %v, want %v", r, j, gotPos, abs[k][0][j])
			}
			if math.Abs(gotVel-abs[k][1][j]) > 1e-2 {
				t.Errorf("row %d vel[%d]: %v, want %v", r, j, gotVel, abs[k][1][j])
			}
		}
	}
	if obs.Query[OffPos] != float32(me.Position[0]) {
		t.Errorf("query position not taken from inverted frame")
	}
}

// TestPaddingRowsStayZero verifies vacant player rows are never populated.
func TestPaddingRowsStayZero(t *testing.T) {
	b := newTestBuilder(t, 6)
	state := newTestState(car(0, engine.TeamBlue, 500, 500), car(1, engine.TeamOrange, 0, 0))
	obs, err := b.BuildObs(&state.Players[0], &state, testAction)
	if err != nil {
		t.Fatalf("BuildObs: %v", err)
	}
	for r := 2; r < 1+b.MaxPlayers(); r++ {
		if obs.Entities[r] != [EntityDim]float32{} {
			t.Errorf("row %d not zero: %v", r, obs.Entities[r])
		}
	}
}

// TestPerspectiveSymmetry encodes a configuration for a blue observer and the
// mirrored configuration for the same car on orange; the tensors must match.
func TestPerspectiveSymmetry(t *testing.T) {
	b := newTestBuilder(t, 4)
	state := newTestState(
		car(0, engine.TeamBlue, 700, -2500),
		car(1, engine.TeamOrange, -400, 1800),
		car(2, engine.TeamBlue, 0, 300),
	)

	mirroredPlayers := make([]engine.PlayerData, len(state.Players))
	for i, p := range state.Players {
		m := p
		m.Team = 1 - p.Team
		m.CarData, m.InvertedCarData = p.InvertedCarData, p.CarData
		mirroredPlayers[i] = m
	}
	pads := state.InvertedBoostPads
	mirrored := engine.NewGameState(mirroredPlayers, state.InvertedBall, pads)

	for i := range state.Players {
		a, err := b.BuildObs(&state.Players[i], &state, testAction)
		if err != nil {
			t.Fatalf("canonical observer %d: %v", i, err)
		}
		m, err := b.BuildObs(&mirrored.Players[i], &mirrored, testAction)
		if err != nil {
			t.Fatalf("mirrored observer %d: %v", i, err)
		}
		if !reflect.DeepEqual(a, m) {
			t.Errorf("observer %d: mirrored encoding differs\n canonical=%v\n mirrored =%v", i, a.Query, m.Query)
		}
	}
}

// TestEncodeDeterministic checks repeated calls and buffer reuse are bit-identical.
func TestEncodeDeterministic(t *testing.T) {
	b := newTestBuilder(t, 6)
	big := newTestState(
		car(0, engine.TeamBlue, 1, 2),
		car(1, engine.TeamOrange, 3, 4),
		car(2, engine.TeamBlue, 5, 6),
		car(3, engine.TeamOrange, 7, 8),
	)
	small := newTestState(car(0, engine.TeamBlue, 9, 9), car(1, engine.TeamOrange, -9, -9))

	first, err := b.BuildObs(&small.Players[1], &small, testAction)
	if err != nil {
		t.Fatalf("BuildObs: %v", err)
	}

	var reused Observation
	if err := b.Encode(&big.Players[0], &big, testAction, &reused); err != nil {
		t.Fatalf("Encode big: %v", err)
	}
	if err := b.Encode(&small.Players[1], &small, testAction, &reused); err != nil {
		t.Fatalf("Encode small: %v", err)
	}
	if !reflect.DeepEqual(first, reused) {
		t.Errorf("reused buffer differs from fresh encoding")
	}
	again, _ := b.BuildObs(&small.Players[1], &small, testAction)
	if !reflect.DeepEqual(first, again) {
		t.Errorf("repeated encoding differs")
	}
}

// TestEncodeConcurrentObservers encodes all observers of one step in parallel.
func TestEncodeConcurrentObservers(t *testing.T) {
	b := newTestBuilder(t, 6)
	state := newTestState(
		car(0, engine.TeamBlue, 1, 2),
		car(1, engine.TeamOrange, 3, 4),
		car(2, engine.TeamBlue, 5, 6),
		car(3, engine.TeamOrange, 7, 8),
	)
	b.Reset(&state)

	want := make([]Observation, len(state.Players))
	for i := range state.Players {
		want[i], _ = b.BuildObs(&state.Players[i], &state, testAction)
	}

	got := make([]Observation, len(state.Players))
	var wg sync.WaitGroup
	for i := range state.Players {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := b.Encode(&state.Players[i], &state, testAction, &got[i]); err != nil {
				t.Errorf("observer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	if !reflect.DeepEqual(want, got) {
		t.Errorf("parallel encodings differ from sequential ones")
	}
}

// TestEncodeErrors covers configuration violations and malformed snapshots.
func TestEncodeErrors(t *testing.T) {
	b := newTestBuilder(t, 2)
	ok := newTestState(car(0, engine.TeamBlue, 0, 0), car(1, engine.TeamOrange, 0, 0))

	overflow := newTestState(car(0, engine.TeamBlue, 0, 0), car(1, engine.TeamOrange, 0, 0), car(2, engine.TeamBlue, 0, 0))
	badPads := ok
	badPads.BoostPads = []bool{true}
	stranger := car(9, engine.TeamBlue, 0, 0)

	tests := []struct {
		name     string
		observer *engine.PlayerData
		state    *engine.GameState
		action   []float32
		want     error
	}{
		{"roster overflow", &overflow.Players[0], &overflow, testAction, ErrRosterOverflow},
		{"pad length mismatch", &badPads.Players[0], &badPads, testAction, engine.ErrMalformedSnapshot},
		{"unknown observer", &stranger, &ok, testAction, ErrUnknownObserver},
		{"short action", &ok.Players[0], &ok, testAction[:3], ErrActionSize},
		{"empty roster", &stranger, &engine.GameState{BoostPads: ok.BoostPads, InvertedBoostPads: ok.InvertedBoostPads}, testAction, engine.ErrMalformedSnapshot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.BuildObs(tt.observer, tt.state, tt.action)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

// TestPaddingMask checks the (6, 4) example and the full/overflow edges.
func TestPaddingMask(t *testing.T) {
	mask := make([]bool, 1+6+34)
	if err := PaddingMask(6, 4, 34, mask); err != nil {
		t.Fatalf("PaddingMask: %v", err)
	}
	count := 0
	for r, m := range mask {
		if !m {
			continue
		}
		count++
		if r == 0 || r > 6 {
			t.Errorf("row %d outside the player block is masked", r)
		}
	}
	if count != 2 {
		t.Errorf("masked rows = %d, want 2", count)
	}
	if !mask[5] || !mask[6] {
		t.Errorf("expected trailing player rows 5 and 6 masked, got %v", mask[:7])
	}

	if err := PaddingMask(6, 6, 34, mask); err != nil {
		t.Fatalf("full roster: %v", err)
	}
	for r, m := range mask {
		if m {
			t.Errorf("full roster: row %d masked", r)
		}
	}

	if err := PaddingMask(6, 7, 34, make([]bool, 1+6+34)); !errors.Is(err, ErrRosterOverflow) {
		t.Errorf("overflow: got %v", err)
	}
	if err := PaddingMask(6, 4, 34, make([]bool, 10)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("short mask: got %v", err)
	}
}

// TestMaskIgnoresOccupancy verifies pad availability never changes the mask.
func TestMaskIgnoresOccupancy(t *testing.T) {
	b := newTestBuilder(t, 4)
	a := newTestState(car(0, engine.TeamBlue, 0, 0), car(1, engine.TeamOrange, 1, 1))
	c := a
	c.BoostPads = []bool{false, false, false, false}
	c.InvertedBoostPads = []bool{false, false, false, false}

	oa, err := b.BuildObs(&a.Players[0], &a, testAction)
	if err != nil {
		t.Fatal(err)
	}
	oc, err := b.BuildObs(&c.Players[0], &c, testAction)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(oa.Mask, oc.Mask) {
		t.Errorf("mask changed with occupancy: %v vs %v", oa.Mask, oc.Mask)
	}
}

// BenchmarkEncode measures per-observer encoding with a reused buffer.
func BenchmarkEncode(b *testing.B) {
	ob, err := NewObsBuilder(engine.MaxPlayers, engine.DefaultBoostPadCatalog())
	if err != nil {
		b.Fatal(err)
	}
	players := make([]engine.PlayerData, engine.MaxPlayers)
	for i := range players {
		players[i] = car(int32(i), engine.Team(i%2), float64(i*100), 0)
	}
	pads := make([]bool, len(engine.DefaultBoostLocations))
	state := engine.NewGameState(players, engine.PhysicsObject{}, pads)
	ob.Reset(&state)

	var out Observation
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := ob.Encode(&state.Players[i%len(players)], &state, testAction, &out); err != nil {
			b.Fatal(err)
		}
	}
}
