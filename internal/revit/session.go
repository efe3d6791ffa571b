package revit

import "errors"

// ErrNoDocument is returned by sessions that have no open document behind
// them; route handlers map it to HTTP 503.
var ErrNoDocument = errors.New("no active document")

// ErrElementNotFound is returned when an element ID does not resolve in the
// current document.
var ErrElementNotFound = errors.New("element not found")

// ParameterKind mirrors the storage types a Revit parameter can carry, as far
// as the bridge needs to distinguish them for coercion.
type ParameterKind string

const (
	KindText    ParameterKind = "text"
	KindInteger ParameterKind = "integer"
	KindNumber  ParameterKind = "number"
	KindLength  ParameterKind = "length"
	KindYesNo   ParameterKind = "yesno"
)

type Parameter struct {
	Kind     ParameterKind
	Text     string
	Number   float64
	Integer  int64
	ReadOnly bool
}

// Value returns the parameter's value in its natural Go type.
func (p Parameter) Value() interface{} {
	switch p.Kind {
	case KindText:
		return p.Text
	case KindInteger, KindYesNo:
		return p.Integer
	default:
		return p.Number
	}
}

type Element struct {
	ID         string
	Name       string
	Category   string // canonical built-in category name, e.g. OST_Windows
	Level      string
	Parameters map[string]Parameter
}

type ProjectInfo struct {
	ProjectName   string `json:"project_name"`
	ProjectNumber string `json:"project_number"`
	FilePath      string `json:"file_path"`
	RevitVersion  string `json:"revit_version"`
	BuildNumber   string `json:"build_number"`
	DocumentTitle string `json:"document_title"`
}

type ViewImage struct {
	ViewName    string
	ContentType string
	Data        []byte
}

// Transaction batches parameter writes; they become visible only on commit.
// All writes must happen on the session's owning goroutine, matching the
// Revit API's single-threaded access requirement.
type Transaction interface {
	SetParameter(elementID, paramName string, raw interface{}) error
}

// Session is the explicit boundary to the hosting Revit document. Handlers
// receive a Session instead of reaching for ambient host globals.
type Session interface {
	// HasDocument reports whether a document is open; every other method
	// returns ErrNoDocument when it is false.
	HasDocument() bool
	ProjectInfo() (ProjectInfo, error)
	ElementsByCategory(category string) ([]Element, error)
	Element(id string) (Element, error)
	SetSelection(ids []string) error
	Selection() []string
	// RunTransaction commits the batched writes when fn returns nil and
	// rolls them back when fn returns an error.
	RunTransaction(name string, fn func(tx Transaction) error) error
	Views() []string
	ExportView(name string) (ViewImage, error)
}
