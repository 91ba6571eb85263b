// file: internal/conditions/loader.go

package conditions

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"ui-conditions/internal/logger"
)

// FormDocument is a form definition: its layout, conditions, initial values
// and the dataset metadata of its input.
type FormDocument struct {
	ID                string                 `json:"id" yaml:"id"`
	UIItems           []UIItem               `json:"uiItems" yaml:"uiItems"`
	Conditions        []*ConditionDefinition `json:"conditions" yaml:"conditions"`
	CurrentParameters map[string]any         `json:"currentParameters" yaml:"currentParameters"`
	DatasetMetadata   []DatasetSchema        `json:"datasetMetadata" yaml:"datasetMetadata"`

	// Path is the file the document was loaded from, if any.
	Path string `json:"-" yaml:"-"`
}

// FormLoader loads and structurally validates form documents.
type FormLoader struct {
	logger    *logger.Logger
	operators *OperatorRegistry
}

// NewFormLoader creates a loader; ops is used to report unknown operators.
func NewFormLoader(log *logger.Logger, ops *OperatorRegistry) *FormLoader {
	if ops == nil {
		ops = NewOperatorRegistry()
	}
	return &FormLoader{logger: log, operators: ops}
}

// IsFormFile reports whether path has a form document extension.
func IsFormFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// LoadFromDirectory loads every form file under dirPath, recursively,
// skipping directories with a "_test" suffix.
func (l *FormLoader) LoadFromDirectory(dirPath string) ([]*FormDocument, error) {
	l.logger.Info("loading forms from directory", "path", dirPath)

	info, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access forms directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dirPath)
	}

	var files []string
	err = filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && strings.HasSuffix(info.Name(), "_test") {
			l.logger.Debug("skipping test directory", "path", path)
			return filepath.SkipDir
		}
		if !info.IsDir() && IsFormFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking forms directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no form files found in directory: %s", dirPath)
	}

	docs := make([]*FormDocument, 0, len(files))
	for _, file := range files {
		doc, err := l.LoadFromFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load form from %s: %w", file, err)
		}
		docs = append(docs, doc)
	}

	l.logger.Info("successfully loaded all forms", "fileCount", len(docs))
	return docs, nil
}

// LoadFromFile loads a YAML or JSON form document.
func (l *FormLoader) LoadFromFile(filePath string) (*FormDocument, error) {
	l.logger.Debug("loading form from file", "path", filePath)

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	doc, err := l.Parse(data, filepath.Ext(filePath))
	if err != nil {
		return nil, err
	}
	doc.Path = filePath
	return doc, nil
}

// Parse decodes a form document. ext selects the format: ".json" or YAML.
func (l *FormLoader) Parse(data []byte, ext string) (*FormDocument, error) {
	var doc FormDocument
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := l.Validate(&doc); err != nil {
		return nil, err
	}
	doc.CurrentParameters = NormalizeValues(doc.CurrentParameters)

	l.logger.Debug("parsed form document",
		"id", doc.ID,
		"conditions", len(doc.Conditions),
		"controls", len(ParseControls(doc.UIItems)))

	return &doc, nil
}

// Validate checks the layout and every condition of doc. Unknown operators
// are logged, since they evaluate permissively.
func (l *FormLoader) Validate(doc *FormDocument) error {
	if err := validateItems(doc.UIItems, "uiItems"); err != nil {
		return err
	}

	for i, def := range doc.Conditions {
		if _, _, err := compileDefinition(def); err != nil {
			return fmt.Errorf("condition %d is invalid: %w", i, err)
		}
	}

	for _, op := range l.UnknownOperators(doc) {
		l.logger.Warn("form uses unknown operator", "form", doc.ID, "op", op)
	}
	return nil
}

func validateItems(items []UIItem, path string) error {
	for i := range items {
		item := &items[i]
		where := fmt.Sprintf("%s[%d]", path, i)
		switch item.ItemType {
		case ItemControl:
			if item.Control == nil || item.Control.Name == "" {
				return fmt.Errorf("%w: %s: control item requires a named control", ErrMalformedDefinition, where)
			}
		case ItemPanel, ItemAdditionalLink:
		case ItemTabs:
			for j := range item.Tabs {
				if err := validateItems([]UIItem{item.Tabs[j].Content}, fmt.Sprintf("%s.tabs[%d]", where, j)); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("%w: %s: unknown itemType %q", ErrMalformedDefinition, where, item.ItemType)
		}
		if err := validateItems(item.Items, where+".items"); err != nil {
			return err
		}
	}
	return nil
}

// UnknownOperators lists the operator names of doc that are not registered,
// in first-seen order.
func (l *FormLoader) UnknownOperators(doc *FormDocument) []string {
	var unknown []string
	seen := make(map[string]struct{})
	for _, def := range doc.Conditions {
		kind, err := def.Kind()
		if err != nil {
			continue
		}
		walkConditions(def.Expression(kind), func(cond *Condition) {
			known := false
			if kind == KindFilter {
				_, known = fieldOperators[cond.Op]
			} else {
				_, known = l.operators.Lookup(cond.Op)
			}
			if _, dup := seen[cond.Op]; known || dup {
				return
			}
			seen[cond.Op] = struct{}{}
			unknown = append(unknown, cond.Op)
		})
	}
	return unknown
}
