package marc

import "time"

// Value keys understood by the template rules
const (
	KeyHoldingID        = "HOLDING_ID"
	KeyCreatedBy        = "CREATED_BY"
	KeyCreatedDate      = "CREATED_DATE"
	KeyLastModifiedBy   = "LAST_MODIFIED_BY"
	KeyLastModifiedDate = "LAST_MODIFIED_DATE"
	KeyLeader           = "LEADER"
	KeyField008         = "FIELD_008"
	KeyRunDate          = "YYMMDD"
	KeyDateCreated      = "DATE_CREATED_VALUE"
	KeyExternalID       = "PROQUEST_IDENTIFIER_VALUE"
	KeyTitle            = "TITLE_VALUE"
	KeyTitleIndicator2  = "TITLE_INDICATOR_2_VALUE"
	KeyObjectURN        = "OBJECT_URN"
	KeyLibraryCode      = "LIB_CODE_3_CHAR"
)

// Values maps a placeholder key to its literal replacement
type Values map[string]string

const (
	// DefaultLeader is the leader of a new holding record
	DefaultLeader = "00000nx  a2200000zi 4500"
	// field008Fixed sits between the run date and the created date of a holding 008
	field008Fixed = "2u    8   4001uu   0"
	// headerDateLayout is the catalog's date-with-zone form, e.g. 2024-01-02Z
	headerDateLayout = "2006-01-02Z"
)

// 🗂️ HeaderValues fills the holding header tokens for a record created by a run.
// A new holding has no id yet, so HOLDING_ID renders empty.
func HeaderValues(by string, now time.Time, dateCreated string) Values {
	day := now.UTC().Format(headerDateLayout)
	return Values{
		KeyHoldingID:        "",
		KeyCreatedBy:        by,
		KeyCreatedDate:      day,
		KeyLastModifiedBy:   by,
		KeyLastModifiedDate: day,
		KeyLeader:           DefaultLeader,
		KeyField008:         now.UTC().Format("060102") + field008Fixed + dateCreated,
	}
}

// Placeholder ties a value key to the literal token written in a template
type Placeholder struct {
	Key   string
	Token string
}

func tokenFor(key string) Placeholder {
	return Placeholder{Key: key, Token: key}
}

// 🧩 Rule scopes a set of placeholders to one element kind.
// Element is the local tag name; Tag and Code narrow controlfield, datafield and subfield matches.
type Rule struct {
	Name    string
	Element string
	Tag     string
	Code    string
	Text    []Placeholder
	// Ind2 is substituted into the enclosing datafield's ind2 attribute
	Ind2 *Placeholder
}

// TemplateRules is the fixed rule set for the DRS holding template
var TemplateRules = []Rule{
	{Name: "holding_id", Element: "holding_id", Text: []Placeholder{tokenFor(KeyHoldingID)}},
	{Name: "created_by", Element: "created_by", Text: []Placeholder{tokenFor(KeyCreatedBy)}},
	{Name: "created_date", Element: "created_date", Text: []Placeholder{tokenFor(KeyCreatedDate)}},
	{Name: "last_modified_by", Element: "last_modified_by", Text: []Placeholder{tokenFor(KeyLastModifiedBy)}},
	{Name: "last_modified_date", Element: "last_modified_date", Text: []Placeholder{tokenFor(KeyLastModifiedDate)}},
	{Name: "leader", Element: "leader", Text: []Placeholder{tokenFor(KeyLeader)}},
	{
		Name:    "control_008",
		Element: "controlfield",
		Tag:     "008",
		Text:    []Placeholder{tokenFor(KeyField008), tokenFor(KeyRunDate), tokenFor(KeyDateCreated)},
	},
	{Name: "external_id", Element: "subfield", Tag: "035", Code: "a", Text: []Placeholder{tokenFor(KeyExternalID)}},
	{
		Name:    "title",
		Element: "subfield",
		Tag:     "245",
		Code:    "a",
		Text:    []Placeholder{tokenFor(KeyTitle)},
		Ind2:    &Placeholder{Key: KeyTitleIndicator2, Token: KeyTitleIndicator2},
	},
	{Name: "preservation_urn", Element: "subfield", Tag: "852", Code: "z", Text: []Placeholder{{Key: KeyObjectURN, Token: "[DRS OBJECT URN]"}}},
	{Name: "location_library", Element: "subfield", Tag: "852", Code: "b", Text: []Placeholder{tokenFor(KeyLibraryCode)}},
	{Name: "local_library", Element: "subfield", Tag: "909", Code: "k", Text: []Placeholder{tokenFor(KeyLibraryCode)}},
}
