package mutate

import (
	"context"
	"time"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/pdferr"
)

func notImplemented(op string) error {
	return pdferr.New(pdferr.KindNotImplemented, op, "operation is not supported")
}

// RemoveImagesOptions selects the pages whose images would be removed.
type RemoveImagesOptions struct {
	// Pages are 0-based; empty means every page.
	Pages []int
}

func RemoveImages(ctx context.Context, doc *document.Document, opts RemoveImagesOptions) (*document.Document, error) {
	return nil, notImplemented("remove images")
}

// Bookmark is one outline entry. Page is 0-based.
type Bookmark struct {
	Title    string
	Page     int
	Children []Bookmark
}

type BookmarkOptions struct {
	Bookmarks []Bookmark
	// Replace discards the existing outline instead of appending to it.
	Replace bool
}

func AddBookmarks(ctx context.Context, doc *document.Document, opts BookmarkOptions) (*document.Document, error) {
	return nil, notImplemented("add bookmarks")
}

type Attachment struct {
	Name        string
	Description string
	MIMEType    string
	Data        []byte
	ModTime     time.Time
}

type AttachmentOptions struct {
	Attachments []Attachment
}

func AddAttachments(ctx context.Context, doc *document.Document, opts AttachmentOptions) (*document.Document, error) {
	return nil, notImplemented("add attachments")
}

type FlattenOptions struct {
	Forms       bool
	Annotations bool
}

func Flatten(ctx context.Context, doc *document.Document, opts FlattenOptions) (*document.Document, error) {
	return nil, notImplemented("flatten")
}

func Grayscale(ctx context.Context, doc *document.Document) (*document.Document, error) {
	return nil, notImplemented("grayscale")
}

type ColorTarget int

const (
	TargetPDFA ColorTarget = iota
	TargetPDFX
	TargetCMYK
)

type ColorConversionOptions struct {
	Target ColorTarget
	// ICCProfile replaces the built-in output intent when set.
	ICCProfile []byte
}

func ConvertColorSpace(ctx context.Context, doc *document.Document, opts ColorConversionOptions) (*document.Document, error) {
	return nil, notImplemented("convert color space")
}

type SignatureOptions struct {
	// Certificate and PrivateKey are PEM encoded.
	Certificate []byte
	PrivateKey  []byte
	Reason      string
	Location    string
	// Page and Rect place a visible signature; Page < 0 means invisible.
	Page int
	Rect document.Rectangle
}

func Sign(ctx context.Context, doc *document.Document, opts SignatureOptions) (*document.Document, error) {
	return nil, notImplemented("sign")
}
