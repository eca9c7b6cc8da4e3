package models

import (
	"strings"

	"gorm.io/gorm"
)

// TranscodingProfile converts one or more source formats into a target format
// through up to three piped external command steps.
//
// Steps are whitespace-separated command lines; the first token names a binary
// in the transcode directory. Supported placeholders:
//   - %s: source file path
//   - %b: max bit rate in kbps
//   - %t, %a, %l: title, artist, album
//   - %o, %d: video time offset and duration in seconds
//   - %w, %h: video width and height
type TranscodingProfile struct {
	BaseModel

	Name          string `gorm:"not null;size:255;uniqueIndex" json:"name"`
	SourceFormats string `gorm:"size:255" json:"source_formats"`
	TargetFormat  string `gorm:"not null;size:32" json:"target_format"`
	Step1         string `gorm:"size:1024" json:"step1"`
	Step2         string `gorm:"size:1024" json:"step2,omitempty"`
	Step3         string `gorm:"size:1024" json:"step3,omitempty"`
	Enabled       *bool  `gorm:"default:true" json:"enabled"`
}

// TableName returns the table name for TranscodingProfile.
func (TranscodingProfile) TableName() string {
	return "transcoding_profiles"
}

// Validate performs basic validation on the profile.
func (p *TranscodingProfile) Validate() error {
	if p.Name == "" {
		return ErrNameRequired
	}
	if p.TargetFormat == "" {
		return ErrTargetFormatRequired
	}
	if strings.TrimSpace(p.Step1) == "" {
		return ErrStepRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the profile and generates ULID.
func (p *TranscodingProfile) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return p.Validate()
}

// IsEnabled reports whether the profile participates in resolution.
func (p *TranscodingProfile) IsEnabled() bool {
	return BoolVal(p.Enabled)
}

// Sources returns the lower-cased source formats.
func (p *TranscodingProfile) Sources() []string {
	fields := strings.Fields(strings.ToLower(p.SourceFormats))
	return fields
}

// Accepts reports whether the profile can transcode the given source format.
func (p *TranscodingProfile) Accepts(format string) bool {
	format = strings.ToLower(format)
	for _, s := range p.Sources() {
		if s == format {
			return true
		}
	}
	return false
}

// Steps returns the non-empty steps in execution order.
func (p *TranscodingProfile) Steps() []string {
	var steps []string
	for _, s := range []string{p.Step1, p.Step2, p.Step3} {
		if strings.TrimSpace(s) != "" {
			steps = append(steps, s)
		}
	}
	return steps
}
