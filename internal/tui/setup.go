// ABOUTME: Interactive TUI wizard for configuring the embedding provider.
// ABOUTME: Bubbletea model collecting provider, API URL, model and API key, then probe-encoding.
package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/affinity/internal/config"
	"github.com/2389-research/affinity/internal/embeddings"
)

// DefaultProvider is used when the provider step is left empty.
const DefaultProvider = "huggingface"

// Step represents the current wizard step.
type Step int

const (
	StepProvider Step = iota
	StepAPIURL
	StepModel
	StepAPIKey
	StepValidating
	StepDone
	StepFailed
)

const (
	inputProvider = iota
	inputAPIURL
	inputModel
	inputAPIKey
	inputCount
)

// validationResultMsg carries the result of an async validation attempt.
type validationResultMsg struct {
	dimension int
	err       error
}

// ValidateFn probe-encodes with cfg and returns the observed embedding dimension.
type ValidateFn func(ctx context.Context, cfg config.EmbeddingsConfig) (int, error)

// cancelHolder shares a cancel function across bubbletea model copies.
// This MUST be stored as a pointer field on SetupModel so that value-receiver
// methods (required by tea.Model) can store the cancel func and have it
// visible to all copies of the model.
type cancelHolder struct {
	cancel context.CancelFunc
}

// SetupModel is the bubbletea model for the setup wizard.
type SetupModel struct {
	step          Step
	inputs        [inputCount]textinput.Model
	spinner       spinner.Model
	validateFn    ValidateFn
	cancelCtx     *cancelHolder
	base          config.EmbeddingsConfig
	dimension     int
	inputErr      string
	validationErr error
	quitting      bool
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	brandStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// NewSetupModel creates a new setup wizard model, pre-filling with existing config values.
func NewSetupModel(existing config.EmbeddingsConfig) SetupModel {
	providerInput := textinput.New()
	providerInput.Placeholder = DefaultProvider
	providerInput.Focus()
	providerInput.Width = 50
	providerInput.SetValue(existing.Provider)

	urlInput := textinput.New()
	urlInput.Width = 50
	urlInput.SetValue(existing.APIURL)

	modelInput := textinput.New()
	modelInput.Width = 50
	modelInput.SetValue(existing.Model)

	keyInput := textinput.New()
	keyInput.Placeholder = "your-api-key"
	keyInput.EchoMode = textinput.EchoPassword
	keyInput.Width = 50
	keyInput.SetValue(existing.APIKey)

	s := spinner.New()
	s.Spinner = spinner.Dot

	return SetupModel{
		step:       StepProvider,
		inputs:     [inputCount]textinput.Model{providerInput, urlInput, modelInput, keyInput},
		spinner:    s,
		validateFn: ValidateProvider,
		cancelCtx:  &cancelHolder{},
		base:       existing,
	}
}

// Init implements tea.Model.
func (m SetupModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m SetupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEscape:
			m.quitting = true
			if m.cancelCtx.cancel != nil {
				m.cancelCtx.cancel()
			}
			return m, tea.Quit
		}

		switch m.step {
		case StepProvider, StepAPIURL, StepModel, StepAPIKey:
			return m.updateInput(msg)
		case StepFailed:
			return m.updateFailed(msg)
		}

	case validationResultMsg:
		m.cancelCtx.cancel = nil
		if msg.err == nil {
			m.dimension = msg.dimension
			m.step = StepDone
			return m, tea.Quit
		}
		m.validationErr = msg.err
		m.step = StepFailed
		return m, nil

	case spinner.TickMsg:
		if m.step == StepValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m SetupModel) provider() string {
	return m.inputs[inputProvider].Value()
}

// defaultsFor returns the API URL and model a provider uses when left empty.
func defaultsFor(provider string) (apiURL, model string) {
	switch provider {
	case "openai":
		return embeddings.DefaultOpenAIURL, embeddings.DefaultOpenAIModel
	case "huggingface":
		return embeddings.DefaultHuggingFaceURL, embeddings.DefaultHuggingFaceModel
	default:
		return "", embeddings.HashModel
	}
}

func (m SetupModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type != tea.KeyEnter {
		// Forward to the active input
		idx := int(m.step)
		var cmd tea.Cmd
		m.inputs[idx], cmd = m.inputs[idx].Update(msg)
		return m, cmd
	}

	m.inputErr = ""
	switch m.step {
	case StepProvider:
		name := strings.ToLower(strings.TrimSpace(m.provider()))
		if name == "" {
			name = DefaultProvider
		}
		if !slices.Contains(config.Providers, name) {
			m.inputErr = fmt.Sprintf("unknown provider %q (choose %s)", name, strings.Join(config.Providers, ", "))
			return m, nil
		}
		if name != m.base.Provider {
			// Settings from another provider do not carry over.
			m.inputs[inputAPIURL].SetValue("")
			m.inputs[inputModel].SetValue("")
		}
		m.inputs[inputProvider].SetValue(name)
		apiURL, model := defaultsFor(name)
		m.inputs[inputAPIURL].Placeholder = apiURL
		m.inputs[inputModel].Placeholder = model
		m.inputs[inputProvider].Blur()

		// The hash model runs locally and needs no endpoint.
		if name == "hash" {
			m.step = StepValidating
			return m, tea.Batch(m.startValidation(), m.spinner.Tick)
		}
		m.step = StepAPIURL
		m.inputs[inputAPIURL].Focus()
		return m, textinput.Blink

	case StepAPIURL:
		val := strings.TrimRight(strings.TrimSpace(m.inputs[inputAPIURL].Value()), "/")
		if val == "" {
			val, _ = defaultsFor(m.provider())
		}
		m.inputs[inputAPIURL].SetValue(val)
		m.inputs[inputAPIURL].Blur()
		m.step = StepModel
		m.inputs[inputModel].Focus()
		return m, textinput.Blink

	case StepModel:
		val := strings.TrimSpace(m.inputs[inputModel].Value())
		if val == "" {
			_, val = defaultsFor(m.provider())
		}
		m.inputs[inputModel].SetValue(val)
		m.inputs[inputModel].Blur()
		m.step = StepAPIKey
		m.inputs[inputAPIKey].Focus()
		return m, textinput.Blink

	case StepAPIKey:
		// Don't advance on empty API key
		if m.inputs[inputAPIKey].Value() == "" {
			return m, nil
		}
		m.inputs[inputAPIKey].Blur()
		m.step = StepValidating
		return m, tea.Batch(m.startValidation(), m.spinner.Tick)
	}

	return m, nil
}

func (m SetupModel) updateFailed(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyRunes {
		switch msg.Runes[0] {
		case 'r':
			m.step = StepValidating
			m.validationErr = nil
			return m, tea.Batch(m.startValidation(), m.spinner.Tick)
		case 's':
			m.step = StepDone
			return m, tea.Quit
		case 'q':
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m SetupModel) startValidation() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelCtx.cancel = cancel
	cfg := m.Result()
	fn := m.validateFn
	return func() tea.Msg {
		dim, err := fn(ctx, cfg)
		return validationResultMsg{dimension: dim, err: err}
	}
}

// View implements tea.Model.
func (m SetupModel) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(brandStyle.Render("   AFFINITY"))
	b.WriteString(titleStyle.Render(" - Setup"))
	b.WriteString("\n\n")
	b.WriteString("Choose the model that turns entries into embeddings.\n\n")

	summary := func(upTo Step) {
		if upTo > StepProvider {
			b.WriteString(fmt.Sprintf("  Provider: %s\n", m.provider()))
		}
		if upTo > StepAPIURL && m.provider() != "hash" {
			b.WriteString(fmt.Sprintf("  API URL:  %s\n", m.inputs[inputAPIURL].Value()))
		}
		if upTo > StepModel && m.provider() != "hash" {
			b.WriteString(fmt.Sprintf("  Model:    %s\n", m.inputs[inputModel].Value()))
		}
		if upTo > StepAPIKey && m.provider() != "hash" {
			b.WriteString(fmt.Sprintf("  API Key:  %s\n", strings.Repeat("*", len(m.inputs[inputAPIKey].Value()))))
		}
		if upTo > StepProvider {
			b.WriteString("\n")
		}
	}

	switch m.step {
	case StepProvider:
		b.WriteString(stepStyle.Render("Step 1 of 4: Provider (" + strings.Join(config.Providers, ", ") + ")"))
		b.WriteString("\n")
		b.WriteString(promptStyle.Render("(press Enter for default)"))
		b.WriteString("\n")
		b.WriteString(m.inputs[inputProvider].View())
		b.WriteString("\n")
		if m.inputErr != "" {
			b.WriteString(errorStyle.Render(m.inputErr))
			b.WriteString("\n")
		}

	case StepAPIURL:
		summary(m.step)
		b.WriteString(stepStyle.Render("Step 2 of 4: API URL"))
		b.WriteString("\n")
		b.WriteString(promptStyle.Render("(press Enter for default)"))
		b.WriteString("\n")
		b.WriteString(m.inputs[inputAPIURL].View())
		b.WriteString("\n")

	case StepModel:
		summary(m.step)
		b.WriteString(stepStyle.Render("Step 3 of 4: Model"))
		b.WriteString("\n")
		b.WriteString(promptStyle.Render("(press Enter for default)"))
		b.WriteString("\n")
		b.WriteString(m.inputs[inputModel].View())
		b.WriteString("\n")

	case StepAPIKey:
		summary(m.step)
		b.WriteString(stepStyle.Render("Step 4 of 4: API Key"))
		b.WriteString("\n")
		b.WriteString(m.inputs[inputAPIKey].View())
		b.WriteString("\n")

	case StepValidating:
		summary(m.step)
		b.WriteString(m.spinner.View())
		b.WriteString(" Encoding a probe entry...")
		b.WriteString("\n")

	case StepDone:
		msg := "✓ Ready!"
		if m.dimension > 0 {
			msg = fmt.Sprintf("✓ Ready! Embeddings have %d dimensions.", m.dimension)
		}
		b.WriteString(successStyle.Render(msg))
		b.WriteString("\n")

	case StepFailed:
		errMsg := "unknown error"
		if m.validationErr != nil {
			errMsg = m.validationErr.Error()
		}
		b.WriteString(errorStyle.Render(fmt.Sprintf("✗ Validation failed: %s", errMsg)))
		b.WriteString("\n\n")
		b.WriteString(promptStyle.Render("[r]etry  [s]ave anyway  [q]uit"))
		b.WriteString("\n")
	}

	return b.String()
}

// Result returns the existing embeddings config updated with the entered values.
// A dimension observed during validation replaces the configured one.
func (m SetupModel) Result() config.EmbeddingsConfig {
	cfg := m.base
	cfg.Provider = m.provider()
	if cfg.Provider == "" {
		cfg.Provider = DefaultProvider
	}
	if cfg.Provider == "hash" {
		cfg.APIURL, cfg.Model, cfg.APIKey = "", "", ""
	} else {
		cfg.APIURL = m.inputs[inputAPIURL].Value()
		cfg.Model = m.inputs[inputModel].Value()
		cfg.APIKey = m.inputs[inputAPIKey].Value()
	}
	if m.dimension > 0 {
		cfg.Dimension = m.dimension
	}
	return cfg
}

// ShouldSave returns true if the wizard completed (via validation success or
// "save anyway") and the user did not cancel with Ctrl+C, Escape, or 'q'.
func (m SetupModel) ShouldSave() bool {
	return m.step == StepDone && !m.quitting
}
