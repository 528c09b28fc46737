package domain

// ResponseType selects the normalization policy applied to a question's raw answer.
type ResponseType string

const (
	ResponseOrdinal     ResponseType = "ordinal"
	ResponsePercentage  ResponseType = "percentage"
	ResponseBoolean     ResponseType = "boolean"
	ResponseCurrency    ResponseType = "currency"
	ResponseText        ResponseType = "text"
	ResponseMultiSelect ResponseType = "multiselect"
)

// Valid reports whether the response type is one the scorer understands.
func (t ResponseType) Valid() bool {
	switch t {
	case ResponseOrdinal, ResponsePercentage, ResponseBoolean, ResponseCurrency, ResponseText, ResponseMultiSelect:
		return true
	}
	return false
}

// ValueKind tags the variant held by a RawValue.
type ValueKind string

const (
	ValueMissing    ValueKind = "missing"
	ValueNumeric    ValueKind = "numeric"
	ValuePercentage ValueKind = "percentage"
	ValueBoolean    ValueKind = "boolean"
	ValueText       ValueKind = "text"
	ValueMulti      ValueKind = "multi"
)

// RawValue is the answer exactly as it was captured, tagged by kind.
type RawValue struct {
	Kind   ValueKind `json:"kind"`
	Number float64   `json:"number,omitempty"`
	Bool   bool      `json:"bool,omitempty"`
	Text   string    `json:"text,omitempty"`
	Items  []string  `json:"items,omitempty"`
}

func MissingValue() RawValue { return RawValue{Kind: ValueMissing} }
func NumberValue(v float64) RawValue { return RawValue{Kind: ValueNumeric, Number: v} }
func PercentValue(v float64) RawValue { return RawValue{Kind: ValuePercentage, Number: v} }
func BoolValue(v bool) RawValue { return RawValue{Kind: ValueBoolean, Bool: v} }
func TextValue(v string) RawValue { return RawValue{Kind: ValueText, Text: v} }
func MultiValue(items []string) RawValue { return RawValue{Kind: ValueMulti, Items: append([]string(nil), items...)} }

// IsMissing reports whether no usable answer was captured.
func (v RawValue) IsMissing() bool {
	return v.Kind == "" || v.Kind == ValueMissing
}

// NormalizedResponse is one answered question after normalization.
// It is created once while normalizing a submission and never mutated.
type NormalizedResponse struct {
	QuestionID      string   `json:"questionId"`
	CategoryCode    string   `json:"categoryCode"`
	ChapterCode     string   `json:"chapterCode"`
	RawValue        RawValue `json:"rawValue"`
	NormalizedScore float64  `json:"normalizedScore"`
	Weight          float64  `json:"weight"`
	IsEstimate      bool     `json:"isEstimate"`
	Missing         bool     `json:"missing,omitempty"`
}
