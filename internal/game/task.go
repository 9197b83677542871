package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"
)

// Color 可選顏色
type Color string

const (
	Red    Color = "red"
	Green  Color = "green"
	Blue   Color = "blue"
	Yellow Color = "yellow"
)

var palette = []Color{Red, Green, Blue, Yellow}

// Palette 回傳全部顏色（副本）
func Palette() []Color {
	return slices.Clone(palette)
}

// Valid 是否為已知顏色
func (c Color) Valid() bool {
	return slices.Contains(palette, c)
}

// ParseColor 解析客戶端送來的顏色字串
func ParseColor(s string) (Color, error) {
	c := Color(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return c, nil
}

// Task 玩家當前的配色題目
//
// Label 是要點選的顏色，Background 是干擾用的背景色，兩者必不相同。
type Task struct {
	Label      Color `json:"label"`
	Background Color `json:"background"`
}

// Matches 出手顏色是否等於標籤（背景色不算）
func (t Task) Matches(c Color) bool {
	return c == t.Label
}

// TaskGenerator 產生隨機題目
//
// 每個房間持有自己的產生器（由 Fork 產生），房間之間不共用這把鎖。
type TaskGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewTaskGenerator 建立題目產生器；src 為 nil 時以 crypto/rand 取種子
func NewTaskGenerator(src rand.Source) *TaskGenerator {
	if src == nil {
		src = rand.NewPCG(newSeed(), newSeed())
	}
	return &TaskGenerator{rng: rand.New(src)}
}

// Next 先從色盤抽出標籤並移除，再從剩餘顏色抽背景色
func (g *TaskGenerator) Next() Task {
	g.mu.Lock()
	defer g.mu.Unlock()

	pool := slices.Clone(palette)
	i := g.rng.IntN(len(pool))
	label := pool[i]
	pool = slices.Delete(pool, i, i+1)
	background := pool[g.rng.IntN(len(pool))]

	return Task{Label: label, Background: background}
}

// Fork 以目前的亂數序列為種子建立獨立的產生器
//
// 同一種子的父產生器 Fork 出的序列也相同，測試可重現。
func (g *TaskGenerator) Fork() *TaskGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	return NewTaskGenerator(rand.NewPCG(g.rng.Uint64(), g.rng.Uint64()))
}

func newSeed() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		// crypto/rand 失敗時退回時間戳
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}
