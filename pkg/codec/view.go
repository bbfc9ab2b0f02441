package codec

import (
	"github.com/graphpack/pkg/bundle"
	"github.com/graphpack/pkg/holder"
	"github.com/graphpack/pkg/identity"
)

// BundleView is a display form of a bundle for JSON or YAML output.
type BundleView struct {
	Type    string      `json:"type" yaml:"type"`
	Version int         `json:"version" yaml:"version"`
	ID      string      `json:"id,omitempty" yaml:"id,omitempty"`
	Fields  []FieldView `json:"fields" yaml:"fields"`
	Super   *BundleView `json:"super,omitempty" yaml:"super,omitempty"`
}

// FieldView is a display form of one field.
type FieldView struct {
	Name      string `json:"name" yaml:"name"`
	Kind      string `json:"kind" yaml:"kind"`
	Mandatory bool   `json:"mandatory,omitempty" yaml:"mandatory,omitempty"`
	Null      bool   `json:"null,omitempty" yaml:"null,omitempty"`
	Value     any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// ArtifactView describes a decoded artifact.
type ArtifactView struct {
	FormatVersion int          `json:"format_version" yaml:"format_version"`
	Compression   string       `json:"compression" yaml:"compression"`
	Checksum      uint64       `json:"checksum" yaml:"checksum"`
	Bundles       []BundleView `json:"bundles" yaml:"bundles"`
}

// NewView builds display forms of bundles. References render as
// "&type:serial".
func NewView(bundles []*bundle.Bundle) []BundleView {
	views := make([]BundleView, 0, len(bundles))
	for _, b := range bundles {
		views = append(views, bundleView(b))
	}
	return views
}

// NewArtifactView combines a header with its bundle views.
func NewArtifactView(h Header, bundles []*bundle.Bundle) ArtifactView {
	return ArtifactView{
		FormatVersion: h.FormatVersion,
		Compression:   h.Compression.String(),
		Checksum:      h.Checksum,
		Bundles:       NewView(bundles),
	}
}

func bundleView(b *bundle.Bundle) BundleView {
	v := BundleView{
		Type:    b.TypeName,
		Version: b.Version,
		Fields:  make([]FieldView, 0, b.Len()),
	}
	if !b.ID.IsZero() {
		v.ID = b.ID.String()
	}
	for _, f := range b.Fields() {
		v.Fields = append(v.Fields, FieldView{
			Name:      f.Name,
			Kind:      f.Holder.Kind().String(),
			Mandatory: f.Holder.IsMandatory(),
			Null:      f.Holder.IsNull(),
			Value:     displayValue(f.Holder),
		})
	}
	if b.Super != nil {
		super := bundleView(b.Super)
		v.Super = &super
	}
	return v
}

func displayValue(h holder.Holder) any {
	if h.IsNull() {
		return nil
	}
	switch v := h.Value().(type) {
	case identity.Reference:
		return v.String()
	case []identity.Reference:
		out := make([]string, len(v))
		for i, r := range v {
			out[i] = r.String()
		}
		return out
	case int32:
		if h.Kind() == holder.KindChar {
			return string(rune(v))
		}
		return v
	case []int32:
		if h.Kind() == holder.KindCharArray {
			return string([]rune(v))
		}
		return v
	default:
		return v
	}
}
