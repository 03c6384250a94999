package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBriefMergeOverwrites(t *testing.T) {
	b := Brief{"interest": "fitness"}
	b.Merge(map[string]string{"interest": "cooking", "tone_sample": "casual"})

	assert.Equal(t, "cooking", b["interest"])
	assert.Equal(t, "casual", b["tone_sample"])
}

func TestBriefMissingFields(t *testing.T) {
	b := Brief{"interest": "fitness", "geo_target": ""}

	missing := b.MissingFields([]string{"interest", "tone_sample", "geo_target"})
	assert.Equal(t, []string{"tone_sample", "geo_target"}, missing, "空文字列は未入力として扱う")

	assert.Nil(t, b.MissingFields([]string{"interest"}))
}

func TestBriefCloneIsIndependent(t *testing.T) {
	original := Brief{"interest": "fitness"}
	cloned := original.Clone()

	cloned["interest"] = "cooking"
	assert.Equal(t, "fitness", original["interest"])
}
