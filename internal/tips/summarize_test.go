package tips

import (
	"strings"
	"testing"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		maxRunes int
		want     string
	}{
		{
			name:     "タグを除去してテキストのみ",
			fragment: "<p>毎日<strong>30分</strong>の散歩を。</p>",
			maxRunes: 100,
			want:     "毎日30分の散歩を。",
		},
		{
			name:     "空白の正規化",
			fragment: "<p>水分を\n  こまめに</p><p>とりましょう</p>",
			maxRunes: 100,
			want:     "水分を こまめに とりましょう",
		},
		{
			name:     "プレーンテキストはそのまま",
			fragment: "睡眠は大切です",
			maxRunes: 100,
			want:     "睡眠は大切です",
		},
		{
			name:     "空文字列",
			fragment: "",
			maxRunes: 100,
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summarize(tt.fragment, tt.maxRunes); got != tt.want {
				t.Errorf("Summarize = %q, want %q", got, tt.want)
			}
		})
	}
}

// マルチバイト文字の途中で切らずに切り詰めることを確認する。
func TestSummarize_TruncatesByRunes(t *testing.T) {
	fragment := strings.Repeat("あ", 10)
	got := Summarize(fragment, 5)

	want := strings.Repeat("あ", 5) + "…"
	if got != want {
		t.Errorf("Summarize = %q, want %q", got, want)
	}
}
