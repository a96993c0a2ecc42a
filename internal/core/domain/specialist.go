package domain

// Role identifies one of the fixed analysis specialists. The set is closed:
// every pipeline stage is handled by exactly one of these roles.
type Role string

const (
	RoleVerifier           Role = "verifier"
	RoleDoctor             Role = "doctor"
	RoleNutritionist       Role = "nutritionist"
	RoleExerciseSpecialist Role = "exercise_specialist"
)

// Specialist is a role-specialized analysis engine configuration: persona
// text, allowed tools, and bounded-effort policy. Persona text is
// configuration data, not behavior.
//
// MaxIterations and AllowDelegation are independent policy knobs. The
// pipeline honors MaxIterations; AllowDelegation is carried as metadata and
// never acted on (with a single reasoning iteration there is no room for a
// delegation round-trip anyway).
type Specialist struct {
	Role            Role
	Title           string
	Goal            string
	Backstory       string
	AllowedTools    []string
	Model           string // empty = engine default
	MaxIterations   int
	CallsPerMinute  int
	AllowDelegation bool
}

// StageSpec describes one unit of the sequential analysis pipeline. The
// description and expected output templates support {query} and {file_path}
// placeholders.
type StageSpec struct {
	Name           string
	Title          string
	Specialist     Role
	Tools          []string
	Description    string
	ExpectedOutput string
}

// Tool names registered by the services package.
const (
	ToolReadBloodReport = "read_blood_report"
	ToolReferenceLookup = "reference_lookup"
	ToolNutritionRules  = "nutrition_rules"
	ToolExerciseRules   = "exercise_rules"
)

// BuiltinSpecialists returns the fixed specialist roster. Each is capped at
// one reasoning iteration and one engine call per minute.
func BuiltinSpecialists() []Specialist {
	return []Specialist{
		{
			Role:  RoleVerifier,
			Title: "Blood Report Verifier",
			Goal: "Carefully inspect the uploaded blood test report to confirm it is a legitimate, " +
				"complete, and authentic medical document. Ensure all essential blood markers are present " +
				"(at least 10 key parameters), and flag any missing, suspicious, or inconsistent data. " +
				"Only approve reports that are suitable for clinical analysis and patient care.",
			Backstory: "You are a medical documentation specialist with deep expertise in verifying the " +
				"integrity and completeness of blood test reports. Your job is to protect patient safety by " +
				"ensuring only accurate, reliable, and comprehensive lab data is used for further analysis. " +
				"You are meticulous, detail-oriented, and uncompromising in your standards for medical documentation.",
			AllowedTools:    []string{ToolReadBloodReport},
			MaxIterations:   1,
			CallsPerMinute:  1,
			AllowDelegation: true,
		},
		{
			Role:  RoleDoctor,
			Title: "Senior Experienced Doctor",
			Goal: "Thoroughly analyze the patient's query and attached blood test report. Use advanced " +
				"medical expertise to provide clear, actionable, and evidence-based medical advice. Tailor " +
				"all recommendations to the patient's unique clinical context, referencing recent clinical " +
				"guidelines or studies where appropriate. Prioritize patient safety, clarity, and " +
				"evidence-based guidance.",
			Backstory: "You are a board-certified physician with decades of experience in interpreting " +
				"complex blood test results and managing diverse patient cases. Your approach is thorough, " +
				"up-to-date, and always focused on delivering trustworthy, patient-centered care. You excel " +
				"at translating lab data into practical medical recommendations that patients can understand " +
				"and act on.",
			AllowedTools:    []string{ToolReadBloodReport, ToolReferenceLookup},
			MaxIterations:   1,
			CallsPerMinute:  1,
			AllowDelegation: true,
		},
		{
			Role:  RoleNutritionist,
			Title: "Clinical Nutrition Specialist",
			Goal: "Review the patient's blood test results and provide at least 3 personalized, " +
				"evidence-based nutrition and supplement recommendations. Address any deficiencies or health " +
				"risks identified in the report, and support the patient's recovery and long-term health with " +
				"clear, practical advice.",
			Backstory: "You are a clinical nutritionist with extensive experience in translating blood test " +
				"data into actionable dietary guidance. Your recommendations are always rooted in the latest " +
				"research and tailored to each patient's unique needs, helping them achieve measurable " +
				"improvements in health and well-being.",
			AllowedTools:   []string{ToolReadBloodReport, ToolNutritionRules},
			MaxIterations:  1,
			CallsPerMinute: 1,
		},
		{
			Role:  RoleExerciseSpecialist,
			Title: "Certified Fitness Coach",
			Goal: "Design a safe, effective exercise plan based on the patient's blood test results and " +
				"current health status. Provide at least 3 specific exercise recommendations, ensuring all " +
				"advice is medically appropriate and supports the patient's long-term wellness goals.",
			Backstory: "You are a certified fitness coach with a strong background in exercise physiology " +
				"and rehabilitation. You specialize in creating evidence-based, individualized fitness " +
				"routines that accommodate medical needs and drive sustainable progress, always prioritizing " +
				"safety and measurable results.",
			AllowedTools:   []string{ToolReadBloodReport, ToolExerciseRules},
			MaxIterations:  1,
			CallsPerMinute: 1,
		},
	}
}

// AnalysisStages returns the fixed stage sequence. Order matters: the
// pipeline runs these one after another and aggregates their outputs.
func AnalysisStages() []StageSpec {
	return []StageSpec{
		{
			Name:       "verification",
			Title:      "Verification",
			Specialist: RoleVerifier,
			Tools:      []string{ToolReadBloodReport},
			Description: `Carefully verify the uploaded document at "{file_path}" to confirm it is a ` +
				"legitimate, complete blood test report. Check for the presence of at least 10 key blood " +
				"markers, and flag any missing or suspicious data. Ensure the report is suitable for " +
				"clinical analysis and patient care.",
			ExpectedOutput: "1. State whether the document is a valid blood test report (yes/no).\n" +
				"2. List the key blood markers found (up to 10).\n" +
				"3. Note any missing or suspicious elements.\n" +
				"4. Provide a brief summary of the report's completeness and reliability.",
		},
		{
			Name:       "medical_interpretation",
			Title:      "Medical Interpretation",
			Specialist: RoleDoctor,
			Tools:      []string{ToolReadBloodReport, ToolReferenceLookup},
			Description: `Analyze the user's query: "{query}" and the blood test report located at ` +
				`"{file_path}". Use evidence-based medical knowledge to identify any abnormalities, provide ` +
				"a clear summary, and offer actionable health recommendations. If relevant, consult recent " +
				"guidelines or studies. Always prioritize patient safety and clarity in your response.",
			ExpectedOutput: "1. List any detected abnormalities or notable findings from the blood test (with reference ranges if possible).\n" +
				"2. Provide a concise summary of the patient's likely health status.\n" +
				"3. Offer 2-3 evidence-based medical recommendations tailored to the findings.\n" +
				"4. If appropriate, include up to 3 reputable medical website URLs for further reading.\n" +
				"5. Use clear, non-alarming language and avoid unnecessary jargon.",
		},
		{
			Name:       "nutrition_analysis",
			Title:      "Nutrition Analysis",
			Specialist: RoleNutritionist,
			Tools:      []string{ToolReadBloodReport, ToolNutritionRules},
			Description: `Review the patient's blood test report located at "{file_path}" and provide a ` +
				"detailed nutrition analysis. Identify any deficiencies or health risks, and recommend at " +
				"least 3 evidence-based dietary changes or supplements. Explain the reasoning behind each " +
				"recommendation and reference relevant blood markers.",
			ExpectedOutput: "1. List any blood markers related to nutrition that are outside the normal range (e.g., iron, cholesterol, glucose, vitamin D).\n" +
				"2. For each finding, provide a specific dietary or supplement recommendation, with a brief explanation.\n" +
				"3. Include at least 3 actionable nutrition tips, and reference reputable sources if possible.\n" +
				"4. Avoid recommending unnecessary or unproven supplements.",
		},
		{
			Name:       "exercise_planning",
			Title:      "Exercise Planning",
			Specialist: RoleExerciseSpecialist,
			Tools:      []string{ToolReadBloodReport, ToolExerciseRules},
			Description: `Design a safe, effective exercise plan based on the patient's blood test results ` +
				`from "{file_path}" and current health status. Take into account any medical conditions or ` +
				"limitations, and provide at least 3 specific exercise recommendations. Explain the rationale " +
				"for each recommendation and ensure all advice is medically appropriate.",
			ExpectedOutput: "1. Summarize any blood test findings relevant to exercise planning (e.g., anemia, high cholesterol, glucose levels).\n" +
				"2. Provide a structured exercise plan with at least 3 components (aerobic, strength, flexibility/balance).\n" +
				"3. For each component, specify frequency, intensity, and duration (e.g., 150 min/week moderate aerobic activity).\n" +
				"4. Include safety precautions and reference clinical guidelines if possible.",
		},
	}
}
