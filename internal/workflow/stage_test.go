package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageIsValid(t *testing.T) {
	for _, s := range []Stage{StageIdle, StageEntry, StageCollecting, StageSubmitting, StagePolling, StageRevealed} {
		assert.True(t, s.IsValid(), "定義済みステージ %s が無効判定された", s)
	}
	assert.False(t, Stage("loading").IsValid())
	assert.False(t, Stage("").IsValid())
}

func TestStageInFlightAndInteractiveArePartition(t *testing.T) {
	// 有効なステージは必ず「飛行中」か「対話可能」のどちらか一方です。
	for _, s := range []Stage{StageIdle, StageEntry, StageCollecting, StageSubmitting, StagePolling, StageRevealed} {
		assert.NotEqual(t, s.InFlight(), s.Interactive(), "ステージ %s の分類が重複または欠落", s)
	}
}
