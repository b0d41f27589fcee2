package domain

import "time"

// Status is the lifecycle phase of a room.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusBetting  Status = "betting"
	StatusShaking  Status = "shaking"
	StatusResult   Status = "result"
	StatusFinished Status = "finished"
)

// DealerMode selects how the banker seat is assigned.
type DealerMode string

const (
	DealerModeFixed  DealerMode = "fixed"
	DealerModeRotate DealerMode = "rotate"
)

// PlayMode selects who drives round transitions.
type PlayMode string

const (
	PlayModeAuto   PlayMode = "auto"
	PlayModeManual PlayMode = "manual"
)

// Config is the host-supplied room configuration.
type Config struct {
	Name            string     `json:"name"`
	MinBet          int64      `json:"minBet"`
	MaxBet          int64      `json:"maxBet"`
	MaxPlayers      int        `json:"maxPlayers"`
	StartingBalance int64      `json:"startingBalance"`
	DealerMode      DealerMode `json:"dealerMode"`
	RotateRounds    int        `json:"rotateRounds"`
	PlayMode        PlayMode   `json:"playMode"`
	DealerCanBet    bool       `json:"dealerCanBet"`
}

// DefaultConfig returns the stock room rules.
func DefaultConfig() Config {
	return Config{
		Name:            "Phòng Bầu Cua",
		MinBet:          5000,
		MaxBet:          50000,
		MaxPlayers:      15,
		StartingBalance: 100000,
		DealerMode:      DealerModeRotate,
		RotateRounds:    3,
		PlayMode:        PlayModeAuto,
	}
}

// Normalize fills unset fields with defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.MinBet <= 0 {
		c.MinBet = def.MinBet
	}
	if c.MaxBet <= 0 {
		c.MaxBet = def.MaxBet
	}
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = def.MaxPlayers
	}
	if c.StartingBalance <= 0 {
		c.StartingBalance = def.StartingBalance
	}
	if c.DealerMode == "" {
		c.DealerMode = def.DealerMode
	}
	if c.RotateRounds <= 0 {
		c.RotateRounds = def.RotateRounds
	}
	if c.PlayMode == "" {
		c.PlayMode = def.PlayMode
	}
}

// Member is a room participant. MemberID is the stable caller-supplied
// identity; ConnID is the current transport connection and changes across
// reconnects. Offline members are retained so rotation, settlement and
// leaderboards stay consistent.
type Member struct {
	MemberID    string `json:"memberId"`
	Nickname    string `json:"nickname"`
	Avatar      string `json:"avatar"`
	ConnID      string `json:"-"`
	InitBalance int64  `json:"initBalance"`
	Balance     int64  `json:"balance"`
	Online      bool   `json:"online"`
}

// Dealer is the current banker assignment.
type Dealer struct {
	MemberID   string `json:"memberId"`
	RoundsLeft int    `json:"roundsLeft"`
}

// RoundRecord is one settled round. History is append-only.
type RoundRecord struct {
	RoundID  int       `json:"roundId"`
	Result   Result    `json:"result"`
	TotalPot int64     `json:"totalPot"`
	Time     time.Time `json:"time"`
}

// Room is the full mutable state of one table. All mutation must run under
// the room's serialized handle.
type Room struct {
	RoomID        string
	HostID        string
	Status        Status
	Config        Config
	CurrentDealer Dealer
	Members       []*Member // insertion order defines rotation order
	TotalBets     map[Door]int64
	History       []RoundRecord
	LastResult    []Door
	PhaseEnd      time.Time // zero while the phase is untimed
	EmptySince    time.Time // zero while any member is online
	CreatedAt     time.Time
	Version       int64
}

// NewRoom creates a waiting room with the host as first dealer.
func NewRoom(roomID, hostID string, cfg Config) *Room {
	cfg.Normalize()
	r := &Room{
		RoomID:    roomID,
		HostID:    hostID,
		Status:    StatusWaiting,
		Config:    cfg,
		TotalBets: zeroTotals(),
		CreatedAt: time.Now(),
	}
	r.CurrentDealer = Dealer{MemberID: hostID, RoundsLeft: cfg.RotateRounds}
	return r
}

func zeroTotals() map[Door]int64 {
	totals := make(map[Door]int64, len(Doors()))
	for _, d := range Doors() {
		totals[d] = 0
	}
	return totals
}

// FindMember returns the member with the given id, or nil.
func (r *Room) FindMember(memberID string) *Member {
	for _, m := range r.Members {
		if m.MemberID == memberID {
			return m
		}
	}
	return nil
}

// MemberIndex returns the rotation index of memberID, or -1.
func (r *Room) MemberIndex(memberID string) int {
	for i, m := range r.Members {
		if m.MemberID == memberID {
			return i
		}
	}
	return -1
}

// OnlineCount counts online members.
func (r *Room) OnlineCount() int {
	n := 0
	for _, m := range r.Members {
		if m.Online {
			n++
		}
	}
	return n
}

// IsDealer reports whether memberID holds the banker seat.
func (r *Room) IsDealer(memberID string) bool {
	return r.CurrentDealer.MemberID == memberID
}

// CurrentRoundID is the id the next settlement will use: rounds are
// numbered from 1 and assigned when settlement begins, so every bet of a
// betting window shares it.
func (r *Room) CurrentRoundID() int {
	return len(r.History) + 1
}

// EnterBetting opens a betting window: totals reset to all-zero and the
// previous result is cleared.
func (r *Room) EnterBetting() {
	r.Status = StatusBetting
	r.TotalBets = zeroTotals()
	r.LastResult = nil
}

// AddTotal accumulates a placed amount on a door.
func (r *Room) AddTotal(door Door, amount int64) {
	r.TotalBets[door] += amount
}

// SubTotal reverses a canceled amount, floored at zero.
func (r *Room) SubTotal(door Door, amount int64) {
	v := r.TotalBets[door] - amount
	if v < 0 {
		v = 0
	}
	r.TotalBets[door] = v
}

// TotalPot sums the current betting window's totals.
func (r *Room) TotalPot() int64 {
	var sum int64
	for _, v := range r.TotalBets {
		sum += v
	}
	return sum
}

// RotateDealer applies the rotation window: decrement roundsLeft and, when
// it hits zero, hand the seat to the circular successor. A departed dealer
// falls back to index 0. Returns the new dealer when the seat changed.
func (r *Room) RotateDealer() (*Member, bool) {
	if r.Config.DealerMode != DealerModeRotate || len(r.Members) == 0 {
		return nil, false
	}

	r.CurrentDealer.RoundsLeft--
	if r.CurrentDealer.RoundsLeft > 0 {
		return nil, false
	}

	next := 0
	if idx := r.MemberIndex(r.CurrentDealer.MemberID); idx >= 0 {
		next = (idx + 1) % len(r.Members)
	}

	m := r.Members[next]
	r.CurrentDealer = Dealer{MemberID: m.MemberID, RoundsLeft: r.Config.RotateRounds}
	return m, true
}

// Clone returns a deep copy, used by repositories to keep stored state
// isolated from in-flight mutation.
func (r *Room) Clone() *Room {
	cp := *r

	cp.Members = make([]*Member, len(r.Members))
	for i, m := range r.Members {
		mc := *m
		cp.Members[i] = &mc
	}

	cp.TotalBets = make(map[Door]int64, len(r.TotalBets))
	for d, v := range r.TotalBets {
		cp.TotalBets[d] = v
	}

	cp.History = make([]RoundRecord, len(r.History))
	copy(cp.History, r.History)

	cp.LastResult = append([]Door(nil), r.LastResult...)

	return &cp
}
