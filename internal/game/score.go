package game

const (
	MatchBonus  = 1
	MissPenalty = -2
)

// Slot 房間中的玩家位置
type Slot int

const (
	Player1 Slot = iota
	Player2
)

func (s Slot) String() string {
	switch s {
	case Player1:
		return "player1"
	case Player2:
		return "player2"
	default:
		return "unknown"
	}
}

// NextScore 計算出手後的分數，分數不會低於 0
func NextScore(prev int, matched bool) int {
	if matched {
		return prev + MatchBonus
	}
	return max(0, prev+MissPenalty)
}

// ScoreLedger 單一房間的雙人計分，不自帶鎖，由 Session 的鎖保護
type ScoreLedger struct {
	scores [2]int
}

// Apply 記錄一次出手並回傳新分數
func (l *ScoreLedger) Apply(slot Slot, matched bool) int {
	l.scores[slot] = NextScore(l.scores[slot], matched)
	return l.scores[slot]
}

// Score 目前分數
func (l *ScoreLedger) Score(slot Slot) int {
	return l.scores[slot]
}

// Reset 歸零
func (l *ScoreLedger) Reset() {
	l.scores = [2]int{}
}

// Result 終局比分與勝負
type Result struct {
	Player1Score int  `json:"player1_score"`
	Player2Score int  `json:"player2_score"`
	Tie          bool `json:"tie"`
	Winner       Slot `json:"-"`
}

// Decide 比較兩邊分數：相同為平手，否則高分者勝
func Decide(p1, p2 int) Result {
	r := Result{Player1Score: p1, Player2Score: p2}
	switch {
	case p1 == p2:
		r.Tie = true
	case p1 > p2:
		r.Winner = Player1
	default:
		r.Winner = Player2
	}
	return r
}

// WinnerLabel "player1"、"player2" 或 "tie"
func (r Result) WinnerLabel() string {
	if r.Tie {
		return "tie"
	}
	return r.Winner.String()
}
