package rules

import "ai-compliance-copilot-service/internal/models"

// defaultRuleDefs is the built-in FDA compliance rule set. Order matters:
// the matcher reports violations in catalog insertion order.
var defaultRuleDefs = []ruleDef{
	{
		ID:       "off_label_001",
		Name:     "Direct Off-Label Promotion",
		Category: CategoryOffLabel,
		Severity: models.SeverityCritical,
		Patterns: []string{
			`this (drug|medication|product) (can|will) (help|treat|cure)`,
			`you can use (this|it) for (weight loss|pcos|prediabetes)`,
			`it('s| is) (great|perfect) for`,
			`many doctors use (this|it) for`,
		},
		Message:             "Off-label promotion detected. You cannot promote unapproved uses.",
		SuggestedResponse:   "I can only discuss the FDA-approved indication. Would you like to hear about the clinical data for the approved use?",
		RegulationReference: "FDA FDCA Section 502(f)(1)",
	},
	{
		ID:       "off_label_002",
		Name:     "Implied Off-Label Use",
		Category: CategoryOffLabel,
		Severity: models.SeverityWarning,
		Patterns: []string{
			`patients have seen (results|benefits|improvements) in`,
			`some doctors prescribe (this|it) for`,
			`it('s| is) commonly used for`,
		},
		Message:             "Be careful - this sounds like implied off-label use.",
		SuggestedResponse:   "I can only speak to our FDA-approved indication.",
		RegulationReference: "FDA Guidance on Off-Label Promotion",
	},
	{
		ID:       "efficacy_001",
		Name:     "Absolute Efficacy Claims",
		Category: CategoryEfficacy,
		Severity: models.SeverityCritical,
		Patterns: []string{
			`(100%|completely|totally|always) (effective|works)`,
			`(cures|eliminates|removes) (all|every)`,
			`guaranteed (results|to work)`,
			`never fails`,
		},
		Message:             "Absolute efficacy claim detected. Use data-backed language.",
		SuggestedResponse:   "In clinical trials, a specific percentage of patients experienced a specific outcome.",
		RegulationReference: "FDA Guidance on Drug Advertising",
	},
	{
		ID:       "efficacy_002",
		Name:     "Comparative Superiority without Data",
		Category: CategoryEfficacy,
		Severity: models.SeverityWarning,
		Patterns: []string{
			`(better|superior|more effective) than`,
			`(best|#1|number one) (drug|medication|treatment)`,
			`beats (all|every) (competitor|other)`,
		},
		Message:             "Comparative claim requires clinical data support.",
		SuggestedResponse:   "Would you like to see the head-to-head trial data?",
		RegulationReference: "FDA Guidance on Comparative Claims",
	},
	{
		ID:       "safety_001",
		Name:     "Downplaying Side Effects",
		Category: CategorySafety,
		Severity: models.SeverityCritical,
		Patterns: []string{
			`(side effects|risks) (are|is) (minimal|minor|nothing to worry about)`,
			`(rarely|almost never) (causes|has) side effects`,
			`(don't|do not) worry about (side effects|risks)`,
		},
		Message:             "Cannot minimize side effects. Provide balanced information.",
		SuggestedResponse:   "The most common side effects are listed in the full prescribing information.",
		RegulationReference: "FDA FDCA Section 502(n)",
	},
	{
		ID:       "contraindication_001",
		Name:     "Ignoring Contraindications",
		Category: CategoryContraindications,
		Severity: models.SeverityCritical,
		Patterns: []string{
			`(pregnant|pregnancy) (is|are) (fine|okay|not a problem)`,
			`(don't|do not) worry about (kidney|liver|heart) (problems|issues)`,
			`contraindications? (don't|do not) (really matter|apply)`,
		},
		Message:             "Cannot dismiss contraindications. This is a patient safety issue.",
		SuggestedResponse:   "This medication has contraindications. Please review the prescribing information carefully.",
		RegulationReference: "FDA Prescribing Information Requirements",
	},
	{
		ID:       "pricing_001",
		Name:     "Illegal Pricing Discussions",
		Category: CategoryPricing,
		Severity: models.SeverityCritical,
		Patterns: []string{
			`(kickback|rebate|discount) for (prescribing|using)`,
			`i('ll| will) give you`,
			`special (deal|offer|pricing) if you`,
		},
		Message:             "This sounds like an illegal inducement. Stop immediately.",
		SuggestedResponse:   "Our pricing follows all federal guidelines. I can connect you with our reimbursement team.",
		RegulationReference: "Anti-Kickback Statute (42 U.S.C. 1320a-7b)",
	},
	{
		// Advisory only: same dedup and dispatch path as substantive rules,
		// but info severity so clients render it as a nudge.
		ID:       "confidence_001",
		Name:     "Uncertain Response",
		Category: CategoryConfidence,
		Severity: models.SeverityInfo,
		Patterns: []string{
			`(i think|maybe|possibly|i'm not sure|i don't know)`,
			`(um+|uh+|er+)[,.!? ]+(um+|uh+|er+)`,
		},
		Message:           "You sound uncertain. Pivot to clinical data or defer to materials.",
		SuggestedResponse: "Let me reference the clinical data to give you an accurate answer.",
	},
}
