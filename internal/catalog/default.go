package catalog

import "AssessmentPipeline/internal/domain"

// DefaultDefinition returns the built-in 12-category, 4-chapter taxonomy.
func DefaultDefinition() Definition {
	return Definition{
		Chapters: []Chapter{
			{Code: "GE", Name: "Growth Engine", Weight: 0.35},
			{Code: "PH", Name: "Performance & Health", Weight: 0.20},
			{Code: "PL", Name: "People & Leadership", Weight: 0.20},
			{Code: "RS", Name: "Resilience & Safeguards", Weight: 0.25},
		},
		Categories: []Category{
			{Code: "STR", Name: "Strategy", Chapter: "GE"},
			{Code: "SAL", Name: "Sales", Chapter: "GE"},
			{Code: "MKT", Name: "Marketing", Chapter: "GE"},
			{Code: "CXP", Name: "Customer Experience", Chapter: "GE"},
			{Code: "OPS", Name: "Operations", Chapter: "PH"},
			{Code: "FIN", Name: "Financials", Chapter: "PH"},
			{Code: "HRS", Name: "Human Resources", Chapter: "PL"},
			{Code: "LDG", Name: "Leadership & Governance", Chapter: "PL"},
			{Code: "TIN", Name: "Technology & Innovation", Chapter: "RS"},
			{Code: "IDS", Name: "IT, Data & Systems", Chapter: "RS"},
			{Code: "RMS", Name: "Risk Management & Sustainability", Chapter: "RS"},
			{Code: "CMP", Name: "Compliance", Chapter: "RS"},
		},
		Questions: []Question{
			{ID: "str_01", Category: "STR", Type: domain.ResponseOrdinal, Weight: 1.5, Prompt: "How clearly is the company strategy documented and communicated?"},
			{ID: "str_02", Category: "STR", Type: domain.ResponseBoolean, Weight: 1.0, Prompt: "Is there a written three-year plan?"},
			{ID: "str_03", Category: "STR", Type: domain.ResponseText, Weight: 0.5, Prompt: "Describe your main competitive advantage."},

			{ID: "sal_01", Category: "SAL", Type: domain.ResponseOrdinal, Weight: 1.5, Prompt: "How predictable is the sales pipeline?"},
			{ID: "sal_02", Category: "SAL", Type: domain.ResponsePercentage, Weight: 1.0, Prompt: "What share of revenue comes from repeat customers?"},
			{ID: "sal_03", Category: "SAL", Type: domain.ResponseCurrency, Weight: 1.0, Prompt: "Average deal size."},

			{ID: "mkt_01", Category: "MKT", Type: domain.ResponseOrdinal, Weight: 1.0, Prompt: "How well defined is the target customer profile?"},
			{ID: "mkt_02", Category: "MKT", Type: domain.ResponseCurrency, Weight: 1.5, Prompt: "Annual marketing spend."},
			{ID: "mkt_03", Category: "MKT", Type: domain.ResponseMultiSelect, Weight: 0.5, Prompt: "Which acquisition channels are in use?"},

			{ID: "cxp_01", Category: "CXP", Type: domain.ResponseOrdinal, Weight: 1.5, Prompt: "How systematically is customer feedback collected?"},
			{ID: "cxp_02", Category: "CXP", Type: domain.ResponsePercentage, Weight: 1.0, Prompt: "Annual customer retention rate."},

			{ID: "ops_01", Category: "OPS", Type: domain.ResponseOrdinal, Weight: 1.5, Prompt: "How standardized are core operating processes?"},
			{ID: "ops_02", Category: "OPS", Type: domain.ResponseBoolean, Weight: 1.0, Prompt: "Are operating KPIs reviewed at least monthly?"},
			{ID: "ops_03", Category: "OPS", Type: domain.ResponsePercentage, Weight: 1.0, Prompt: "On-time delivery rate."},

			{ID: "fin_01", Category: "FIN", Type: domain.ResponsePercentage, Weight: 2.0, Prompt: "Net profit margin."},
			{ID: "fin_02", Category: "FIN", Type: domain.ResponseCurrency, Weight: 1.5, Prompt: "Cash reserves on hand."},
			{ID: "fin_03", Category: "FIN", Type: domain.ResponseBoolean, Weight: 1.0, Prompt: "Is a rolling cash-flow forecast maintained?"},

			{ID: "hrs_01", Category: "HRS", Type: domain.ResponseOrdinal, Weight: 1.5, Prompt: "How effective is hiring and onboarding?"},
			{ID: "hrs_02", Category: "HRS", Type: domain.ResponsePercentage, Weight: 1.0, Prompt: "Annual employee retention rate."},

			{ID: "ldg_01", Category: "LDG", Type: domain.ResponseOrdinal, Weight: 1.5, Prompt: "How clearly are decision rights defined?"},
			{ID: "ldg_02", Category: "LDG", Type: domain.ResponseBoolean, Weight: 1.0, Prompt: "Is there an advisory board or board of directors?"},
			{ID: "ldg_03", Category: "LDG", Type: domain.ResponseText, Weight: 0.5, Prompt: "Describe the succession plan for key roles."},

			{ID: "tin_01", Category: "TIN", Type: domain.ResponseOrdinal, Weight: 1.5, Prompt: "How actively does the company adopt new technology?"},
			{ID: "tin_02", Category: "TIN", Type: domain.ResponseCurrency, Weight: 1.0, Prompt: "Annual technology investment."},

			{ID: "ids_01", Category: "IDS", Type: domain.ResponseOrdinal, Weight: 1.5, Prompt: "How integrated are business systems and data?"},
			{ID: "ids_02", Category: "IDS", Type: domain.ResponseBoolean, Weight: 1.5, Prompt: "Are backups tested at least quarterly?"},

			{ID: "rms_01", Category: "RMS", Type: domain.ResponseOrdinal, Weight: 1.5, Prompt: "How mature is the risk register and its review cadence?"},
			{ID: "rms_02", Category: "RMS", Type: domain.ResponseBoolean, Weight: 1.0, Prompt: "Is business interruption insurance in place?"},
			{ID: "rms_03", Category: "RMS", Type: domain.ResponseMultiSelect, Weight: 0.5, Prompt: "Which sustainability practices are in place?"},

			{ID: "cmp_01", Category: "CMP", Type: domain.ResponseOrdinal, Weight: 1.5, Prompt: "How confident are you in regulatory compliance?"},
			{ID: "cmp_02", Category: "CMP", Type: domain.ResponseBoolean, Weight: 1.0, Prompt: "Has an external compliance audit happened in the last two years?"},
		},
	}
}

// Default builds the built-in catalog. The definition is static, so a
// validation failure is a programming error.
func Default() *Catalog {
	c, err := New(DefaultDefinition())
	if err != nil {
		panic(err)
	}
	return c
}
