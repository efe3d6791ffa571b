package revit

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// MemorySession is a Session over an in-memory document model, loaded from a
// YAML file. It stands in for a live Revit host during development and in
// tests.
type MemorySession struct {
	mu        sync.Mutex
	info      ProjectInfo
	elements  map[string]Element
	order     []string
	views     []string
	selection []string
	open      bool
}

type modelFile struct {
	Project struct {
		Name         string `yaml:"name"`
		Number       string `yaml:"number"`
		FilePath     string `yaml:"file_path"`
		RevitVersion string `yaml:"revit_version"`
		Build        string `yaml:"build"`
	} `yaml:"project"`
	Elements []struct {
		ID         int64                     `yaml:"id"`
		Name       string                    `yaml:"name"`
		Category   string                    `yaml:"category"`
		Level      string                    `yaml:"level"`
		Parameters map[string]modelParameter `yaml:"parameters"`
	} `yaml:"elements"`
	Views []struct {
		Name string `yaml:"name"`
	} `yaml:"views"`
}

type modelParameter struct {
	Type     string      `yaml:"type"`
	Value    interface{} `yaml:"value"`
	ReadOnly bool        `yaml:"read_only"`
}

// LoadMemorySession reads a YAML model file and builds a session from it.
func LoadMemorySession(path string) (*MemorySession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	return ParseMemorySession(data)
}

// ParseMemorySession builds a session from YAML model bytes.
func ParseMemorySession(data []byte) (*MemorySession, error) {
	var mf modelFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse model file: %w", err)
	}

	s := &MemorySession{
		elements: make(map[string]Element),
		open:     true,
	}
	s.info = ProjectInfo{
		ProjectName:   mf.Project.Name,
		ProjectNumber: mf.Project.Number,
		FilePath:      mf.Project.FilePath,
		RevitVersion:  mf.Project.RevitVersion,
		BuildNumber:   mf.Project.Build,
		DocumentTitle: docTitle(mf.Project.FilePath, mf.Project.Name),
	}
	for _, e := range mf.Elements {
		canonical, ok := ResolveCategory(e.Category)
		if !ok {
			return nil, fmt.Errorf("element %d: unknown category %q", e.ID, e.Category)
		}
		el := Element{
			ID:         strconv.FormatInt(e.ID, 10),
			Name:       e.Name,
			Category:   canonical,
			Level:      e.Level,
			Parameters: make(map[string]Parameter, len(e.Parameters)),
		}
		for name, mp := range e.Parameters {
			p, err := parameterFromModel(mp)
			if err != nil {
				return nil, fmt.Errorf("element %d parameter %q: %w", e.ID, name, err)
			}
			el.Parameters[name] = p
		}
		if _, dup := s.elements[el.ID]; dup {
			return nil, fmt.Errorf("duplicate element id %d", e.ID)
		}
		s.elements[el.ID] = el
		s.order = append(s.order, el.ID)
	}
	for _, v := range mf.Views {
		s.views = append(s.views, v.Name)
	}
	return s, nil
}

// NewEmptySession returns a session in the "no document open" state.
func NewEmptySession() *MemorySession {
	return &MemorySession{elements: make(map[string]Element)}
}

func parameterFromModel(mp modelParameter) (Parameter, error) {
	kind := ParameterKind(mp.Type)
	if kind == "" {
		kind = KindText
	}
	p := Parameter{Kind: kind, ReadOnly: mp.ReadOnly}
	switch kind {
	case KindText:
		p.Text = fmt.Sprintf("%v", valueOrEmpty(mp.Value))
	case KindInteger, KindYesNo:
		n, err := toInt64(mp.Value)
		if err != nil {
			return p, err
		}
		p.Integer = n
	case KindNumber, KindLength:
		f, err := toFloat64(mp.Value)
		if err != nil {
			return p, err
		}
		p.Number = f
	default:
		return p, fmt.Errorf("unknown parameter type %q", mp.Type)
	}
	return p, nil
}

func valueOrEmpty(v interface{}) interface{} {
	if v == nil {
		return ""
	}
	return v
}

func (s *MemorySession) HasDocument() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *MemorySession) ProjectInfo() (ProjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ProjectInfo{}, ErrNoDocument
	}
	return s.info, nil
}

func (s *MemorySession) ElementsByCategory(category string) ([]Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, ErrNoDocument
	}
	var out []Element
	for _, id := range s.order {
		el := s.elements[id]
		if el.Category == category {
			out = append(out, cloneElement(el))
		}
	}
	return out, nil
}

func (s *MemorySession) Element(id string) (Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return Element{}, ErrNoDocument
	}
	el, ok := s.elements[id]
	if !ok {
		return Element{}, fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	return cloneElement(el), nil
}

func (s *MemorySession) SetSelection(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNoDocument
	}
	var kept []string
	for _, id := range ids {
		if _, ok := s.elements[id]; ok {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 && len(ids) > 0 {
		return fmt.Errorf("%w: none of %d ids resolve", ErrElementNotFound, len(ids))
	}
	s.selection = kept
	return nil
}

func (s *MemorySession) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.selection))
	copy(out, s.selection)
	return out
}

// memoryTx stages writes against copies; Commit swaps them in.
type memoryTx struct {
	session *MemorySession
	staged  map[string]Element
}

func (tx *memoryTx) SetParameter(elementID, paramName string, raw interface{}) error {
	el, ok := tx.staged[elementID]
	if !ok {
		orig, found := tx.session.elements[elementID]
		if !found {
			return fmt.Errorf("%w: %s", ErrElementNotFound, elementID)
		}
		el = cloneElement(orig)
	}
	p, ok := el.Parameters[paramName]
	if !ok {
		return fmt.Errorf("parameter %q not found on element %s", paramName, elementID)
	}
	if p.ReadOnly {
		return fmt.Errorf("parameter %q is read-only", paramName)
	}
	coerced, err := CoerceParameter(p, raw)
	if err != nil {
		return err
	}
	el.Parameters[paramName] = coerced
	tx.staged[elementID] = el
	return nil
}

func (s *MemorySession) RunTransaction(name string, fn func(tx Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNoDocument
	}
	tx := &memoryTx{session: s, staged: make(map[string]Element)}
	if err := fn(tx); err != nil {
		// Rollback: staged copies are simply discarded.
		return err
	}
	for id, el := range tx.staged {
		s.elements[id] = el
	}
	return nil
}

func (s *MemorySession) Views() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.views))
	copy(out, s.views)
	return out
}

// ExportView renders a small placeholder PNG for the named view. A live host
// would rasterize the actual view; the shape of the result is the same.
func (s *MemorySession) ExportView(name string) (ViewImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ViewImage{}, ErrNoDocument
	}
	found := false
	for _, v := range s.views {
		if v == name {
			found = true
			break
		}
	}
	if !found {
		return ViewImage{}, fmt.Errorf("view %q not found", name)
	}

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	seed := byte(len(name) * 7)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: byte(x * 4), G: byte(y * 4), B: seed, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ViewImage{}, fmt.Errorf("encode view image: %w", err)
	}
	return ViewImage{ViewName: name, ContentType: "image/png", Data: buf.Bytes()}, nil
}

// CoerceParameter converts a raw JSON value into the parameter's storage
// type, returning an updated copy.
func CoerceParameter(p Parameter, raw interface{}) (Parameter, error) {
	switch p.Kind {
	case KindText:
		p.Text = fmt.Sprintf("%v", valueOrEmpty(raw))
	case KindLength:
		if s, ok := raw.(string); ok {
			v, err := ParseLength(s)
			if err != nil {
				return p, err
			}
			p.Number = v
			break
		}
		f, err := toFloat64(raw)
		if err != nil {
			return p, err
		}
		p.Number = f
	case KindNumber:
		f, err := toFloat64(raw)
		if err != nil {
			return p, err
		}
		p.Number = f
	case KindInteger:
		n, err := toInt64(raw)
		if err != nil {
			return p, err
		}
		p.Integer = n
	case KindYesNo:
		n, err := toYesNo(raw)
		if err != nil {
			return p, err
		}
		p.Integer = n
	default:
		return p, fmt.Errorf("unknown parameter kind %q", p.Kind)
	}
	return p, nil
}

func toFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func toInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case float64:
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("not an integer: %v", v)
	}
}

func toYesNo(v interface{}) (int64, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "yes", "true", "1":
			return 1, nil
		case "no", "false", "0":
			return 0, nil
		}
		return 0, fmt.Errorf("not a yes/no value: %q", x)
	default:
		n, err := toInt64(v)
		if err != nil {
			return 0, fmt.Errorf("not a yes/no value: %v", v)
		}
		if n != 0 {
			return 1, nil
		}
		return 0, nil
	}
}

func cloneElement(el Element) Element {
	cp := el
	cp.Parameters = make(map[string]Parameter, len(el.Parameters))
	for k, v := range el.Parameters {
		cp.Parameters[k] = v
	}
	return cp
}

func docTitle(filePath, fallback string) string {
	if filePath == "" {
		return fallback
	}
	base := filePath
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if j := strings.LastIndexByte(base, '.'); j > 0 {
		base = base[:j]
	}
	if base == "" {
		return fallback
	}
	return base
}

// ParameterNames returns the element's parameter names sorted, for stable
// API payloads.
func ParameterNames(el Element) []string {
	names := make([]string, 0, len(el.Parameters))
	for n := range el.Parameters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
