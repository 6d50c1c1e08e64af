package workflow

import "github.com/clinicore/clinicore/pkg/agent"

// Templates returns the five built-in workflow templates keyed by type.
// The returned map is freshly built on each call; callers may not mutate
// shared state through it.
func Templates() map[Type]*Template {
	return map[Type]*Template{
		TypePatientAdmission: {
			Type:        TypePatientAdmission,
			Description: "Admit a patient: demographics, insurance, triage, bed assignment and care team notification.",
			Steps: []agent.Step{
				{Name: "collect_demographics", Capability: agent.CapabilityAdministrative, Required: true},
				{Name: "verify_insurance", Capability: agent.CapabilityAdministrative, Required: true},
				{Name: "initial_triage", Capability: agent.CapabilityTriage, Required: true},
				{Name: "assign_bed", Capability: agent.CapabilityScheduling, Required: true},
				{Name: "notify_care_team", Capability: agent.CapabilityCommunication, Required: false},
			},
		},
		TypeAppointmentScheduling: {
			Type:        TypeAppointmentScheduling,
			Description: "Book an appointment: parse the request, find and book a slot, confirm with the patient.",
			Steps: []agent.Step{
				{Name: "parse_request", Capability: agent.CapabilityAdministrative, Required: true},
				{Name: "check_availability", Capability: agent.CapabilityScheduling, Required: true},
				{Name: "resolve_conflicts", Capability: agent.CapabilityScheduling, Required: false},
				{Name: "book_appointment", Capability: agent.CapabilityScheduling, Required: true},
				{Name: "send_confirmation", Capability: agent.CapabilityCommunication, Required: false},
			},
		},
		TypeClinicalDocumentation: {
			Type:        TypeClinicalDocumentation,
			Description: "Produce and file a clinical note from encounter material.",
			Steps: []agent.Step{
				{Name: "gather_encounter_notes", Capability: agent.CapabilityDocumentation, Required: true},
				{Name: "draft_clinical_note", Capability: agent.CapabilityDocumentation, Required: true},
				{Name: "review_for_compliance", Capability: agent.CapabilityClinicalDecision, Required: false},
				{Name: "file_note", Capability: agent.CapabilityAdministrative, Required: true},
			},
		},
		TypeDischargeProcess: {
			Type:        TypeDischargeProcess,
			Description: "Discharge a patient: criteria check, summary, follow-up, billing and patient notification.",
			Steps: []agent.Step{
				{Name: "verify_discharge_criteria", Capability: agent.CapabilityClinicalDecision, Required: true},
				{Name: "prepare_discharge_summary", Capability: agent.CapabilityDocumentation, Required: true},
				{Name: "schedule_followup", Capability: agent.CapabilityScheduling, Required: false},
				{Name: "reconcile_billing", Capability: agent.CapabilityAdministrative, Required: false},
				{Name: "notify_patient", Capability: agent.CapabilityCommunication, Required: true},
			},
		},
		TypeEmergencyTriage: {
			Type:        TypeEmergencyTriage,
			Description: "Triage an emergency presentation and alert the care team.",
			Steps: []agent.Step{
				{Name: "assess_urgency", Capability: agent.CapabilityTriage, Required: true},
				{Name: "identify_red_flags", Capability: agent.CapabilityTriage, Required: true},
				{Name: "recommend_care_pathway", Capability: agent.CapabilityClinicalDecision, Required: true},
				{Name: "alert_care_team", Capability: agent.CapabilityCommunication, Required: false},
			},
		},
	}
}

// TemplateCapabilities returns the distinct capabilities used across all
// given templates, for startup binding validation.
func TemplateCapabilities(templates map[Type]*Template) []agent.Capability {
	seen := make(map[agent.Capability]bool)
	var capabilities []agent.Capability
	for _, template := range templates {
		for _, capability := range template.Capabilities() {
			if !seen[capability] {
				seen[capability] = true
				capabilities = append(capabilities, capability)
			}
		}
	}
	return capabilities
}
