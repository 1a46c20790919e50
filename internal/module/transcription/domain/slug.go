package domain

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// SlugifyName はファイル名から拡張子を除き、キーに使える文字列に変換します。
// 空になった場合は file-<8文字> を返します。
func SlugifyName(name string) string {
	return slugify(Basename(name), "file-", 8)
}

// SlugifyUser はユーザー名をキーに使える文字列に変換します
func SlugifyUser(name string) string {
	if name == "" {
		name = "user"
	}
	return slugify(name, "user-", 6)
}

func slugify(s, fallbackPrefix string, fallbackLen int) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	slug := strings.Trim(b.String(), "-_")
	if slug == "" {
		return fallbackPrefix + randomID(fallbackLen)
	}
	return slug
}

func randomID(n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:n]
}

// Basename はパスと拡張子を除いたファイル名を返します
func Basename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	ext := path.Ext(base)
	if ext == base {
		return base
	}
	return strings.TrimSuffix(base, ext)
}

// Extension はファイル名の拡張子をドットなしの小文字で返します
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
}

// SafeObjectName はアップロード名のパス区切りを置き換えます
func SafeObjectName(filename string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(filename)
}
