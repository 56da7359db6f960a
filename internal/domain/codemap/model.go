package codemap

import (
	"bytes"
	"encoding/json"
)

// ProcedureRecord is a flat HCPCS/CPT row from the article hcpc-code
// sub-endpoint.
type ProcedureRecord struct {
	HCPCCodeID       string `json:"hcpc_code_id"`
	LongDescription  string `json:"long_description"`
	ShortDescription string `json:"short_description"`
	HCPCCodeGroup    *int   `json:"hcpc_code_group,omitempty"`
}

// Description resolves the display text for a procedure record, preferring
// the long description.
func (r ProcedureRecord) Description() string {
	if r.LongDescription != "" {
		return r.LongDescription
	}
	return r.ShortDescription
}

// DiagnosisRecord is a flat ICD-10 row from the article icd10-covered
// sub-endpoint. Records without a covered group are unreachable from any
// coverage paragraph and never appear in per-group output.
type DiagnosisRecord struct {
	ICD10CodeID       string `json:"icd10_code_id"`
	Description       string `json:"description"`
	Asterisk          string `json:"asterisk"`
	ICD10CoveredGroup *int   `json:"icd10_covered_group,omitempty"`
}

// CoverageGroupRecord is a row from the article icd10-covered-group
// sub-endpoint: one free-text coverage paragraph per diagnosis group.
// The paragraph is HTML with CMS's double entity encoding.
type CoverageGroupRecord struct {
	ICD10CoveredGroup *int   `json:"icd10_covered_group,omitempty"`
	Paragraph         string `json:"paragraph"`
}

// ProcedureCode is an indexed procedure code with its resolved description.
type ProcedureCode struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Group       *int   `json:"group,omitempty"`
}

// DiagnosisCode is a diagnosis code as it appears in mapping output.
type DiagnosisCode struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Asterisk    string `json:"asterisk,omitempty"`
}

// ProcedureRef is a procedure code reference in the reverse mapping.
type ProcedureRef struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ProcedureDiagnoses is the per-procedure-code view of a forward mapping:
// one procedure code with its deduplicated, insertion-ordered diagnosis list.
type ProcedureDiagnoses struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	ICD10Codes  []DiagnosisCode `json:"icd10_codes"`
}

// DiagnosisProcedures is the per-diagnosis-code view of a reverse mapping.
type DiagnosisProcedures struct {
	Code        string         `json:"code"`
	Description string         `json:"description"`
	CPTCodes    []ProcedureRef `json:"cpt_codes"`
}

// GroupMapping records the outcome of mining one coverage-group paragraph.
type GroupMapping struct {
	GroupNum   *int            `json:"group_num,omitempty"`
	Paragraph  string          `json:"paragraph"`
	CPTCodes   []string        `json:"cpt_codes"`
	ICD10Codes []DiagnosisCode `json:"icd10_codes"`
}

// ForwardMapping is the procedure-keyed CPT/HCPCS → ICD-10 view built from
// one article's code records. Treat it as read-only once built.
type ForwardMapping struct {
	ByProcedureCode *ProcedureCodeMap        `json:"by_cpt"`
	Groups          []GroupMapping           `json:"groups"`
	ProcedureIndex  map[string]ProcedureCode `json:"hcpc_codes"`
}

// ReverseMapping is the diagnosis-keyed ICD-10 → CPT/HCPCS view derived
// from a ForwardMapping.
type ReverseMapping struct {
	ByDiagnosisCode *DiagnosisCodeMap `json:"by_icd10"`
}

// ProcedureCodeMap is an insertion-ordered map of procedure code →
// ProcedureDiagnoses. Insertion order is the order procedures were first
// associated, which keeps mapping output deterministic.
type ProcedureCodeMap struct {
	order   []string
	entries map[string]*ProcedureDiagnoses
}

// NewProcedureCodeMap creates an empty ordered procedure-code map.
func NewProcedureCodeMap() *ProcedureCodeMap {
	return &ProcedureCodeMap{entries: make(map[string]*ProcedureDiagnoses)}
}

// Get returns the entry for a procedure code, if present.
func (m *ProcedureCodeMap) Get(code string) (*ProcedureDiagnoses, bool) {
	e, ok := m.entries[code]
	return e, ok
}

// Put inserts an entry, appending the code to the iteration order on first
// insertion. Re-putting an existing code replaces the entry in place.
func (m *ProcedureCodeMap) Put(e *ProcedureDiagnoses) {
	if _, exists := m.entries[e.Code]; !exists {
		m.order = append(m.order, e.Code)
	}
	m.entries[e.Code] = e
}

// Codes returns the procedure codes in insertion order.
func (m *ProcedureCodeMap) Codes() []string {
	return m.order
}

// Len returns the number of entries.
func (m *ProcedureCodeMap) Len() int {
	return len(m.order)
}

// MarshalJSON renders the map as a JSON object with keys in insertion order.
func (m *ProcedureCodeMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, code := range m.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(code)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(m.entries[code])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DiagnosisCodeMap is an insertion-ordered map of diagnosis code →
// DiagnosisProcedures.
type DiagnosisCodeMap struct {
	order   []string
	entries map[string]*DiagnosisProcedures
}

// NewDiagnosisCodeMap creates an empty ordered diagnosis-code map.
func NewDiagnosisCodeMap() *DiagnosisCodeMap {
	return &DiagnosisCodeMap{entries: make(map[string]*DiagnosisProcedures)}
}

// Get returns the entry for a diagnosis code, if present.
func (m *DiagnosisCodeMap) Get(code string) (*DiagnosisProcedures, bool) {
	e, ok := m.entries[code]
	return e, ok
}

// Put inserts an entry, appending the code to the iteration order on first
// insertion.
func (m *DiagnosisCodeMap) Put(e *DiagnosisProcedures) {
	if _, exists := m.entries[e.Code]; !exists {
		m.order = append(m.order, e.Code)
	}
	m.entries[e.Code] = e
}

// Codes returns the diagnosis codes in insertion order.
func (m *DiagnosisCodeMap) Codes() []string {
	return m.order
}

// Len returns the number of entries.
func (m *DiagnosisCodeMap) Len() int {
	return len(m.order)
}

// MarshalJSON renders the map as a JSON object with keys in insertion order.
func (m *DiagnosisCodeMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, code := range m.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(code)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(m.entries[code])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
