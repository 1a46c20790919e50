package domain_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

func TestSlugifyName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "拡張子を除く", input: "talk.mp3", want: "talk"},
		{name: "空白と括弧はハイフン", input: "My File (1).mp3", want: "my-file--1"},
		{name: "パスは除く", input: "dir/sub/Interview.WAV", want: "interview"},
		{name: "Windows のパス区切り", input: `C:\audio\rec_01.wav`, want: "rec_01"},
		{name: "先頭末尾の区切りは除く", input: "--abc__.mp3", want: "abc"},
		{name: "ASCII 以外は置換", input: "会議.mp3", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.SlugifyName(tt.input)
			assert.Regexp(t, slugPattern, got)
			if tt.want == "" {
				assert.Regexp(t, `^file-[0-9a-f]{8}$`, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlugifyName_Deterministic(t *testing.T) {
	first := domain.SlugifyName("My File (1).mp3")
	for range 10 {
		assert.Equal(t, first, domain.SlugifyName("My File (1).mp3"))
	}
}

func TestSlugifyName_EmptyFallback(t *testing.T) {
	got := domain.SlugifyName("")
	assert.Regexp(t, `^file-[0-9a-f]{8}$`, got)
}

func TestSlugifyUser(t *testing.T) {
	assert.Equal(t, "alice", domain.SlugifyUser("Alice"))
	assert.Equal(t, "bob-smith", domain.SlugifyUser("Bob Smith"))
	assert.Equal(t, "user", domain.SlugifyUser(""))
	assert.Regexp(t, `^user-[0-9a-f]{6}$`, domain.SlugifyUser("!!!"))
}

func TestBasenameAndExtension(t *testing.T) {
	assert.Equal(t, "talk", domain.Basename("talk.mp3"))
	assert.Equal(t, "archive.tar", domain.Basename("archive.tar.gz"))
	assert.Equal(t, ".env", domain.Basename(".env"))
	assert.Equal(t, "noext", domain.Basename("noext"))
	assert.Equal(t, "mp3", domain.Extension("Talk.MP3"))
	assert.Equal(t, "", domain.Extension("noext"))
	assert.Equal(t, "a_b_c.mp3", domain.SafeObjectName(`a/b\c.mp3`))
}
