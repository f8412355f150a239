package document

import (
	"strings"
	"time"

	"github.com/wudi/pdftools/ir/raw"
)

// Metadata is the document information record. Every field is optional.
type Metadata struct {
	Title        string
	Author       string
	Subject      string
	Keywords     []string
	Creator      string
	Producer     string
	CreationDate time.Time
	ModDate      time.Time
}

// MetadataUpdate names the fields to overwrite; nil fields are left alone.
type MetadataUpdate struct {
	Title        *string
	Author       *string
	Subject      *string
	Keywords     *[]string
	Creator      *string
	Producer     *string
	CreationDate *time.Time
	ModDate      *time.Time
}

// Apply returns m with the provided fields of u overwritten.
func (m Metadata) Apply(u MetadataUpdate) Metadata {
	if u.Title != nil {
		m.Title = *u.Title
	}
	if u.Author != nil {
		m.Author = *u.Author
	}
	if u.Subject != nil {
		m.Subject = *u.Subject
	}
	if u.Keywords != nil {
		m.Keywords = append([]string(nil), (*u.Keywords)...)
	}
	if u.Creator != nil {
		m.Creator = *u.Creator
	}
	if u.Producer != nil {
		m.Producer = *u.Producer
	}
	if u.CreationDate != nil {
		m.CreationDate = *u.CreationDate
	}
	if u.ModDate != nil {
		m.ModDate = *u.ModDate
	}
	return m.Normalized()
}

// Normalized returns m in the form it takes after being written and read
// back: keywords split and trimmed with empty ones dropped, and dates
// truncated to whole seconds.
func (m Metadata) Normalized() Metadata {
	m.Keywords = normalizeKeywords(m.Keywords)
	m.CreationDate = truncateDate(m.CreationDate)
	m.ModDate = truncateDate(m.ModDate)
	return m
}

func normalizeKeywords(ks []string) []string {
	out := ks
	// Two passes reach a fixed point: a lone keyword holding ";" splits
	// on the second.
	for i := 0; i < 2; i++ {
		out = splitKeywords(strings.Join(out, keywordSep))
	}
	return out
}

func truncateDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Truncate(time.Second)
}

// IsZero reports whether no field is set.
func (m Metadata) IsZero() bool {
	return m.Title == "" && m.Author == "" && m.Subject == "" && len(m.Keywords) == 0 &&
		m.Creator == "" && m.Producer == "" && m.CreationDate.IsZero() && m.ModDate.IsZero()
}

const keywordSep = ", "

var infoKeys = []string{"Title", "Author", "Subject", "Keywords", "Creator", "Producer", "CreationDate", "ModDate"}

// metadataFromInfo reads the known entries of an Info dictionary and returns
// the remaining ones separately.
func metadataFromInfo(d *raw.DictObj, resolve func(raw.Object) raw.Object) (Metadata, *raw.DictObj) {
	var m Metadata
	extra := raw.Dict()
	if d == nil {
		return m, extra
	}
	text := func(key string) string {
		b, ok := raw.StringOf(resolve(dictEntry(d, key)))
		if !ok {
			return ""
		}
		return DecodeText(b)
	}
	m.Title = text("Title")
	m.Author = text("Author")
	m.Subject = text("Subject")
	m.Keywords = splitKeywords(text("Keywords"))
	m.Creator = text("Creator")
	m.Producer = text("Producer")
	m.CreationDate, _ = ParseDate(text("CreationDate"))
	m.ModDate, _ = ParseDate(text("ModDate"))
	m = m.Normalized()

	known := make(map[string]bool, len(infoKeys))
	for _, k := range infoKeys {
		known[k] = true
	}
	for _, k := range d.Keys() {
		if !known[k] {
			v, _ := d.Get(k)
			extra.Set(k, v)
		}
	}
	return m, extra
}

// InfoDict renders m as an Info dictionary, starting from a copy of extra.
func (m Metadata) InfoDict(extra *raw.DictObj) *raw.DictObj {
	d := raw.Dict()
	for _, k := range extra.Keys() {
		v, _ := extra.Get(k)
		d.Set(k, v)
	}
	set := func(key, val string) {
		if val != "" {
			d.Set(key, raw.Str(EncodeText(val)))
		}
	}
	set("Title", m.Title)
	set("Author", m.Author)
	set("Subject", m.Subject)
	set("Keywords", strings.Join(m.Keywords, keywordSep))
	set("Creator", m.Creator)
	set("Producer", m.Producer)
	if !m.CreationDate.IsZero() {
		set("CreationDate", FormatDate(m.CreationDate))
	}
	if !m.ModDate.IsZero() {
		set("ModDate", FormatDate(m.ModDate))
	}
	return d
}

func splitKeywords(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	sep := ","
	if !strings.Contains(s, ",") && strings.Contains(s, ";") {
		sep = ";"
	}
	var out []string
	for _, k := range strings.Split(s, sep) {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
