package codemap

import "strings"

// indexProcedures builds the procedure index keyed by upper-cased code.
// Records with a blank code are skipped. Input order is preserved in the
// returned code slice so downstream association stays deterministic.
func indexProcedures(records []ProcedureRecord) (map[string]ProcedureCode, []string) {
	index := make(map[string]ProcedureCode, len(records))
	var order []string
	for _, r := range records {
		code := strings.ToUpper(strings.TrimSpace(r.HCPCCodeID))
		if code == "" {
			continue
		}
		if _, exists := index[code]; !exists {
			order = append(order, code)
		}
		index[code] = ProcedureCode{
			Code:        code,
			Description: r.Description(),
			Group:       r.HCPCCodeGroup,
		}
	}
	return index, order
}

// indexDiagnosesByGroup groups the flat diagnosis rows by their covered
// group number, appending in input order. Rows without a group number are
// excluded: no coverage paragraph can ever reference them.
func indexDiagnosesByGroup(records []DiagnosisRecord) map[int][]DiagnosisCode {
	byGroup := make(map[int][]DiagnosisCode)
	for _, r := range records {
		if r.ICD10CoveredGroup == nil {
			continue
		}
		byGroup[*r.ICD10CoveredGroup] = append(byGroup[*r.ICD10CoveredGroup], DiagnosisCode{
			Code:        strings.ToUpper(strings.TrimSpace(r.ICD10CodeID)),
			Description: r.Description,
			Asterisk:    r.Asterisk,
		})
	}
	return byGroup
}

// BuildForwardMapping mines each coverage-group paragraph for CPT/HCPCS
// references and associates the extracted codes with the group's diagnosis
// codes, then compacts the result into a per-procedure-code view.
//
// When a paragraph yields no extracted codes, the group's diagnosis codes
// are associated with every procedure code in the article. This is an
// intentionally over-inclusive heuristic carried over from the source
// behavior: a paragraph that names no explicit codes is assumed to apply to
// all procedures in context, trading precision for recall.
//
// The function is pure: it reads the inputs, holds no shared state, and is
// safe to call concurrently for different articles.
func BuildForwardMapping(procedures []ProcedureRecord, diagnoses []DiagnosisRecord, coverageGroups []CoverageGroupRecord) *ForwardMapping {
	procedureIndex, procedureOrder := indexProcedures(procedures)
	diagnosesByGroup := indexDiagnosesByGroup(diagnoses)

	byProcedure := NewProcedureCodeMap()
	seenDiagnoses := make(map[string]map[string]bool)

	associate := func(procedureCode string, diagnosisList []DiagnosisCode) {
		entry, ok := byProcedure.Get(procedureCode)
		if !ok {
			description := ""
			if info, known := procedureIndex[procedureCode]; known {
				description = info.Description
			}
			entry = &ProcedureDiagnoses{Code: procedureCode, Description: description}
			byProcedure.Put(entry)
			seenDiagnoses[procedureCode] = make(map[string]bool)
		}
		seen := seenDiagnoses[procedureCode]
		for _, d := range diagnosisList {
			if seen[d.Code] {
				continue
			}
			seen[d.Code] = true
			entry.ICD10Codes = append(entry.ICD10Codes, d)
		}
	}

	groups := make([]GroupMapping, 0, len(coverageGroups))
	for _, group := range coverageGroups {
		extracted := ExtractProcedureCodes(group.Paragraph)

		var diagnosisList []DiagnosisCode
		if group.ICD10CoveredGroup != nil {
			diagnosisList = diagnosesByGroup[*group.ICD10CoveredGroup]
		}

		groups = append(groups, GroupMapping{
			GroupNum:   group.ICD10CoveredGroup,
			Paragraph:  Unescape(group.Paragraph),
			CPTCodes:   extracted,
			ICD10Codes: diagnosisList,
		})

		if len(extracted) > 0 {
			for _, code := range extracted {
				associate(code, diagnosisList)
			}
		} else {
			for _, code := range procedureOrder {
				associate(code, diagnosisList)
			}
		}
	}

	return &ForwardMapping{
		ByProcedureCode: byProcedure,
		Groups:          groups,
		ProcedureIndex:  procedureIndex,
	}
}

// BuildReverseMapping derives the diagnosis-keyed view from a forward
// mapping. Each diagnosis entry is created on first sight with that
// occurrence's code and description; procedure references are appended
// unique-by-code in the forward mapping's iteration order.
func BuildReverseMapping(forward *ForwardMapping) *ReverseMapping {
	byDiagnosis := NewDiagnosisCodeMap()
	seenProcedures := make(map[string]map[string]bool)

	for _, procedureCode := range forward.ByProcedureCode.Codes() {
		procedureEntry, _ := forward.ByProcedureCode.Get(procedureCode)
		for _, diagnosis := range procedureEntry.ICD10Codes {
			entry, ok := byDiagnosis.Get(diagnosis.Code)
			if !ok {
				entry = &DiagnosisProcedures{Code: diagnosis.Code, Description: diagnosis.Description}
				byDiagnosis.Put(entry)
				seenProcedures[diagnosis.Code] = make(map[string]bool)
			}
			if seenProcedures[diagnosis.Code][procedureCode] {
				continue
			}
			seenProcedures[diagnosis.Code][procedureCode] = true
			entry.CPTCodes = append(entry.CPTCodes, ProcedureRef{
				Code:        procedureCode,
				Description: procedureEntry.Description,
			})
		}
	}

	return &ReverseMapping{ByDiagnosisCode: byDiagnosis}
}
