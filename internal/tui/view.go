package tui

import (
	"errors"
	"fmt"
	"strings"

	"futureslab/internal/archetype"
	"futureslab/internal/session"
	"futureslab/internal/workshop"
)

var stepTitles = map[workshop.Step]string{
	workshop.StepWelcome:       "Welcome to the Futures Lab",
	workshop.StepSetup:         "Setup",
	workshop.StepCode:          "Session code",
	workshop.StepCards:         "Choose your future",
	workshop.StepDistantFuture: "2050: the distant future",
	workshop.StepNotSoDistant:  "2035: the not so distant future",
	workshop.StepNearFuture:    "2030: the near future",
	workshop.StepIntervention:  "Intervention",
	workshop.StepConsequences:  "Consequences",
	workshop.StepInsights:      "Insights",
	workshop.StepClosing:       "Thank you",
}

// outputForStep names the generated output shown on a reveal step.
var outputForStep = map[workshop.Step]string{
	workshop.StepDistantFuture: workshop.OutputDistantFuture,
	workshop.StepNotSoDistant:  workshop.OutputNotSoDistant,
	workshop.StepNearFuture:    workshop.OutputNearFuture,
	workshop.StepConsequences:  workshop.OutputIntervention,
}

// screen is the widget state a step view needs beyond the session state.
type screen struct {
	codeField    string
	textField    string
	showOriginal bool
	insightSent  bool
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(header(m.state))
	b.WriteString("\n\n")
	b.WriteString(renderStep(m.state, screen{
		codeField:    m.code.View(),
		textField:    m.text.View(),
		showOriginal: m.showOriginal,
		insightSent:  m.insightSent,
	}))
	b.WriteString("\n")

	if m.busy {
		b.WriteString("\n" + m.spinner.View() + " " + busyLabel(m.state))
	}
	if m.notice != "" {
		b.WriteString("\n" + warningStyle.Render(m.notice))
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("Error: "+errorText(m.err)))
	}
	b.WriteString("\n" + helpStyle.Render(help(m.state, m.entersCode(), m.acceptsText())))
	return b.String()
}

// errorText is what the screen shows for a failed action. Provider failures
// stay generic; the log keeps the cause.
func errorText(err error) string {
	if errors.Is(err, workshop.ErrGenerationFailed) {
		return "Generation failed. Please try again."
	}
	return err.Error()
}

func header(s session.State) string {
	title := titleStyle.Render(stepTitles[s.Step])
	meta := fmt.Sprintf("step %d/%d", int(s.Step), int(workshop.LastStep))
	if s.Session.Code != "" {
		meta += " · " + s.Session.Code
	}
	if s.Role != "" {
		meta += " · " + string(s.Role)
	}
	return title + "  " + stepStyle.Render(meta)
}

func busyLabel(s session.State) string {
	if _, ok := generations[s.Step]; ok && s.Role == workshop.RoleModerator {
		return "Writing the scenario..."
	}
	return "Working..."
}

// renderStep is the body of the current screen. It depends only on its
// arguments.
func renderStep(s session.State, sc screen) string {
	switch s.Step {
	case workshop.StepWelcome:
		return "Together we will imagine a future shaped by two technologies,\n" +
			"then work back to the choices we can make today."
	case workshop.StepSetup:
		return renderSetup(s)
	case workshop.StepCode:
		if s.Session.ID == "" {
			return "Enter the code shown by your moderator:\n\n" + sc.codeField
		}
		if s.Role != workshop.RoleModerator {
			return dimStyle.Render("Joined. Waiting for the moderator to start...")
		}
		return "Share this code with the participants:\n\n" + codeStyle.Render(s.Session.Code)
	case workshop.StepCards:
		return renderCards(s)
	case workshop.StepDistantFuture, workshop.StepNotSoDistant, workshop.StepNearFuture:
		return renderScenario(s.Outputs[outputForStep[s.Step]])
	case workshop.StepIntervention:
		if s.Role != workshop.RoleModerator {
			return "What would you do today to steer towards a better future?\n" +
				dimStyle.Render("The moderator is writing down the intervention.")
		}
		return "What would you do today to steer towards a better future?\n\n" + sc.textField
	case workshop.StepConsequences:
		if sc.showOriginal {
			return dimStyle.Render("Original scenario") + "\n\n" + renderScenario(s.Outputs[workshop.OutputDistantFuture])
		}
		return renderScenario(s.Outputs[workshop.OutputIntervention])
	case workshop.StepInsights:
		if sc.insightSent {
			return selectedStyle.Render("Thanks, your insight was saved.")
		}
		return "What is your main insight from this session?\n\n" + sc.textField
	case workshop.StepClosing:
		return "The session has ended. Thank you for taking part."
	}
	return ""
}

func renderSetup(s session.State) string {
	var b strings.Builder
	b.WriteString("Your role:\n")
	for _, r := range []workshop.Role{workshop.RoleModerator, workshop.RoleViewer} {
		b.WriteString("  " + choice(string(r), s.Role == r) + "\n")
	}
	b.WriteString("\nLanguage: " + selectedStyle.Render(s.Language.Name()))
	return b.String()
}

func renderCards(s session.State) string {
	if s.Role != workshop.RoleModerator {
		return dimStyle.Render("The moderator is drawing the technology cards...")
	}
	in := s.Inputs
	var b strings.Builder
	b.WriteString("Technologies (pick two):\n")
	for i, t := range workshop.Technologies {
		picked := in.Technology1 == t || in.Technology2 == t
		b.WriteString(fmt.Sprintf("  %d %s\n", i+1, choice(string(t), picked)))
	}
	b.WriteString("\n")
	b.WriteString(axis("r", "Resources", string(in.Resources)))
	b.WriteString(axis("s", "System", strings.ReplaceAll(string(in.System), "_", " ")))
	b.WriteString(axis("d", "Dominant value", string(in.DominantValue)))
	if a, ok := archetype.Classify(in.Resources, in.System); ok {
		b.WriteString("\nArchetype: " + selectedStyle.Render(string(a)))
	}
	return b.String()
}

func axis(key, label, value string) string {
	if value == "" {
		value = dimStyle.Render("not chosen")
	} else {
		value = selectedStyle.Render(value)
	}
	return fmt.Sprintf("  %s %s: %s\n", key, label, value)
}

func choice(label string, on bool) string {
	if on {
		return selectedStyle.Render("[x] " + label)
	}
	return "[ ] " + label
}

func renderScenario(content string) string {
	if strings.TrimSpace(content) == "" {
		return dimStyle.Render("Waiting for the scenario...")
	}
	return scenarioStyle.Render(content)
}

func help(s session.State, entersCode, acceptsText bool) string {
	switch {
	case entersCode:
		return "enter join · esc back · ctrl+c quit"
	case acceptsText:
		return "ctrl+s submit · ctrl+c quit"
	}
	keys := []string{}
	switch s.Step {
	case workshop.StepWelcome:
		keys = append(keys, "enter continue")
	case workshop.StepSetup:
		keys = append(keys, "m moderator", "v viewer", "l language", "enter start")
	case workshop.StepCards:
		if s.Role == workshop.RoleModerator {
			keys = append(keys, "1-6 cards", "r/s/d axes")
		}
	case workshop.StepConsequences:
		keys = append(keys, "o original scenario")
	}
	if s.Role == workshop.RoleModerator && s.Step > workshop.StepSetup && !s.Step.Terminal() {
		keys = append(keys, "enter next")
	}
	keys = append(keys, "q quit")
	return strings.Join(keys, " · ")
}
