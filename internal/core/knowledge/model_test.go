package knowledge_test

import (
	"testing"

	"github.com/eznarratives/protocol-kb/internal/core/knowledge"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    knowledge.RawRecord
		source string
		index  int
		want   knowledge.Record
	}{
		{
			name: "textとchunk_idをそのまま採用する",
			raw: knowledge.RawRecord{
				Text:    "胸痛の評価手順",
				Title:   "胸痛プロトコル",
				ChunkID: "chest-pain-001",
			},
			source: "ems-protocols",
			index:  0,
			want: knowledge.Record{
				ContentID: "chest-pain-001",
				Title:     "胸痛プロトコル",
				Content:   "胸痛の評価手順",
			},
		},
		{
			name: "textが無ければcontentを採用する",
			raw: knowledge.RawRecord{
				Content: "外傷搬送基準",
				ID:      "trauma-triage",
			},
			source: "ems-protocols",
			index:  1,
			want: knowledge.Record{
				ContentID: "trauma-triage",
				Content:   "外傷搬送基準",
			},
		},
		{
			name: "chunk_idをidより優先する",
			raw: knowledge.RawRecord{
				Text:    "a",
				ChunkID: "chunk-1",
				ID:      "legacy-1",
			},
			source: "s",
			index:  0,
			want: knowledge.Record{
				ContentID: "chunk-1",
				Content:   "a",
			},
		},
		{
			name: "識別子が無ければsourceとindexから生成する",
			raw: knowledge.RawRecord{
				Text: "b",
			},
			source: "fire-sop",
			index:  4,
			want: knowledge.Record{
				ContentID: "fire-sop-4",
				Content:   "b",
			},
		},
		{
			name:   "空レコードもフォールバック識別子を持つ",
			raw:    knowledge.RawRecord{},
			source: "fire-sop",
			index:  0,
			want: knowledge.Record{
				ContentID: "fire-sop-0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := knowledge.Normalize(tt.raw, tt.source, tt.index)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordEmpty(t *testing.T) {
	assert.True(t, knowledge.Record{ContentID: "x", Title: "タイトルのみ"}.Empty())
	assert.False(t, knowledge.Record{ContentID: "x", Content: "本文あり"}.Empty())
}

func TestRecordStorageKey(t *testing.T) {
	record := knowledge.Record{ContentID: "chest-pain-001"}
	assert.Equal(t, "ems-protocols-chest-pain-001", record.StorageKey("ems-protocols"))

	// フォールバック識別子の場合はソース名が二重に現れる
	fallback := knowledge.Normalize(knowledge.RawRecord{Text: "a"}, "fire-sop", 2)
	assert.Equal(t, "fire-sop-fire-sop-2", fallback.StorageKey("fire-sop"))
}
