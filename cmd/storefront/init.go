// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sigil-dev/storefront/internal/backend"
	"github.com/sigil-dev/storefront/internal/config"
	"github.com/sigil-dev/storefront/internal/credentials"
	"github.com/sigil-dev/storefront/internal/transport"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

// initHTTPClient is the HTTP client used to validate the backend.
// Exposed as a variable so tests can replace it.
var initHTTPClient = &http.Client{Timeout: 10 * time.Second}

const initValidateTimeout = 15 * time.Second

// initWizardStep tracks which step of the wizard is active.
type initWizardStep int

const (
	stepURL      initWizardStep = iota // enter backend URL
	stepToken                          // enter bearer token (optional)
	stepValidate                       // checking the backend (spinner)
	stepDone                           // wizard complete
	stepError                          // terminal error
)

// initResult holds the collected wizard answers.
type initResult struct {
	BaseURL string
	Token   string
}

type (
	validationSuccessMsg struct{}
	validationErrorMsg   struct{ err error }
	configWrittenMsg     struct{ path string }
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step          initWizardStep
	urlInput      textinput.Model
	tokenInput    textinput.Model
	spinner       spinner.Model
	result        initResult
	validationErr string
	configPath    string
	store         credentialStore
	errFinal      error
}

func newInitModel(store credentialStore, configPath, defaultURL string) initModel {
	u := textinput.New()
	u.Placeholder = config.FallbackAPIBaseURL
	u.SetValue(defaultURL)
	u.Focus()

	token := textinput.New()
	token.Placeholder = "leave empty if the backend needs no token"
	token.EchoMode = textinput.EchoPassword
	token.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:       stepURL,
		urlInput:   u,
		tokenInput: token,
		spinner:    sp,
		store:      store,
		configPath: configPath,
	}
}

func (m initModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case validationSuccessMsg:
		return m, writeConfigCmd(m.result, m.store, m.configPath)

	case validationErrorMsg:
		m.validationErr = msg.err.Error()
		// A rejected token is fixed on the token step; anything else points
		// at the URL.
		if sferr.IsUnauthorized(msg.err) {
			m.step = stepToken
			m.tokenInput.Focus()
		} else {
			m.step = stepURL
			m.urlInput.Focus()
		}
		return m, nil

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	return m.updateInputs(msg)
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.step {
	case stepURL:
		return m.handleURLInput(msg)
	case stepToken:
		return m.handleTokenInput(msg)
	}
	return m, nil
}

func (m initModel) handleURLInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() != "enter" {
		var cmd tea.Cmd
		m.urlInput, cmd = m.urlInput.Update(msg)
		return m, cmd
	}

	raw := strings.TrimSpace(m.urlInput.Value())
	if raw == "" {
		raw = config.FallbackAPIBaseURL
	}
	if err := checkBaseURL(raw); err != nil {
		m.validationErr = err.Error()
		return m, nil
	}
	m.result.BaseURL = strings.TrimRight(raw, "/")
	m.validationErr = ""
	m.step = stepToken
	m.urlInput.Blur()
	m.tokenInput.Focus()
	return m, textinput.Blink
}

func (m initModel) handleTokenInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.step = stepURL
		m.validationErr = ""
		m.tokenInput.Blur()
		m.urlInput.Focus()
		return m, textinput.Blink
	case "enter":
		m.result.Token = strings.TrimSpace(m.tokenInput.Value())
		m.validationErr = ""
		m.step = stepValidate
		m.tokenInput.Blur()
		return m, tea.Batch(
			m.spinner.Tick,
			validateBackendCmd(m.result),
		)
	}
	var cmd tea.Cmd
	m.tokenInput, cmd = m.tokenInput.Update(msg)
	return m, cmd
}

func (m initModel) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.step {
	case stepURL:
		m.urlInput, cmd = m.urlInput.Update(msg)
	case stepToken:
		m.tokenInput, cmd = m.tokenInput.Update(msg)
	}
	return m, cmd
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Storefront Setup  ") + "\n\n")

	switch m.step {
	case stepURL:
		b.WriteString(promptStyle.Render("Step 1/2: Backend URL") + "\n\n")
		b.WriteString(m.urlInput.View() + "\n")
		m.writeValidationErr(&b)
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepToken:
		b.WriteString(promptStyle.Render("Step 2/2: API token for "+m.result.BaseURL) + "\n\n")
		b.WriteString(m.tokenInput.View() + "\n")
		m.writeValidationErr(&b)
		b.WriteString("\n" + dimStyle.Render("enter to continue  esc to go back  ctrl+c to quit"))

	case stepValidate:
		b.WriteString(m.spinner.View() + " Checking " + m.result.BaseURL + "…\n")

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n")
		}
		if m.result.Token != "" {
			b.WriteString(dimStyle.Render("Token stored in the OS keyring") + "\n")
		}
		b.WriteString("\nRun " + promptStyle.Render("storefront products") + " and " +
			promptStyle.Render("storefront chat") + " to get started.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

func (m initModel) writeValidationErr(b *strings.Builder) {
	if m.validationErr != "" {
		b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
	}
}

func validateBackendCmd(result initResult) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), initValidateTimeout)
		defer cancel()
		if err := validateBackend(ctx, result); err != nil {
			return validationErrorMsg{err: err}
		}
		return validationSuccessMsg{}
	}
}

func writeConfigCmd(result initResult, store credentialStore, configPath string) tea.Cmd {
	return func() tea.Msg {
		if err := saveInitResult(result, store, configPath); err != nil {
			return err
		}
		return configWrittenMsg{path: configPath}
	}
}

// checkBaseURL rejects anything that is not an absolute http(s) URL.
func checkBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return sferr.Errorf(sferr.CodeCLIInputInvalid, "%q is not an http(s) URL", raw)
	}
	return nil
}

// validateBackend checks that the backend answers GET /health and, when a
// token is given, that an authenticated read is accepted.
func validateBackend(ctx context.Context, result initResult) error {
	creds := transport.NewCredentials()
	if result.Token != "" {
		creds.SetAuthHeaders(map[string]string{"Authorization": "Bearer " + result.Token})
	}
	client, err := transport.New(transport.Options{
		BaseURL:     result.BaseURL,
		HTTPClient:  initHTTPClient,
		Credentials: creds,
		UserAgent:   "storefront-init/" + version,
	})
	if err != nil {
		return err
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := client.Get(ctx, "/health", &health,
		transport.WithFallbackMessage("backend did not answer the health check")); err != nil {
		return err
	}
	if health.Status != "ok" {
		return sferr.Errorf(sferr.CodeTransportResponseInvalid, "backend reports status %q", health.Status)
	}

	if result.Token == "" {
		return nil
	}
	if _, err := backend.New(client).ListProducts(ctx); err != nil {
		if sferr.IsUnauthorized(err) {
			return sferr.Wrap(err, sferr.CodeClientAuthUnauthorized, "backend rejected the token")
		}
		return err
	}
	return nil
}

// saveInitResult stores the token in the keyring under the backend URL,
// keeping any user id or extra headers already stored there, then records
// the URL in the config file.
func saveInitResult(result initResult, store credentialStore, configPath string) error {
	if result.Token != "" {
		bundle, err := store.Load(result.BaseURL)
		if err != nil && !sferr.HasCode(err, sferr.CodeCredentialNotFound) {
			return err
		}
		headers := make(map[string]string, len(bundle.Headers)+1)
		for k, v := range bundle.Headers {
			headers[k] = v
		}
		headers["Authorization"] = "Bearer " + result.Token
		if err := store.Save(result.BaseURL, credentials.Bundle{Headers: headers, UserID: bundle.UserID}); err != nil {
			return err
		}
	}

	// NOTE: a failed config write leaves the stored token in place; the next
	// successful run overwrites it.
	return config.WriteBaseURL(configPath, result.BaseURL)
}

// initConfigPath is the file init writes: the config in use, else the
// default path.
func (c *cli) initConfigPath() (string, error) {
	if used := c.v.ConfigFileUsed(); used != "" {
		return used, nil
	}
	return config.DefaultConfigPath()
}

func newInitCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard for the storefront client",
		Long: `Run an interactive wizard that asks for the backend URL and an optional
API token, checks the backend's /health endpoint and, with a token, that an
authenticated request is accepted.

The token is stored in the OS keyring under the backend URL. The URL is
written to the config file; other settings in the file are kept.

Pass --url (and --token) to run without prompts.`,
		Args: cobra.NoArgs,
		RunE: c.runInit,
	}

	cmd.Flags().String("url", "", "backend URL; skips the prompts")
	cmd.Flags().String("token", "", "API token sent as a bearer token")

	return cmd
}

func (c *cli) runInit(cmd *cobra.Command, _ []string) error {
	path, err := c.initConfigPath()
	if err != nil {
		return err
	}
	store := credentialStoreFactory()

	if rawURL, _ := cmd.Flags().GetString("url"); rawURL != "" {
		token, _ := cmd.Flags().GetString("token")
		return runInitNonInteractive(cmd, initResult{BaseURL: rawURL, Token: strings.TrimSpace(token)}, store, path)
	}

	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"storefront init requires an interactive terminal.\n"+
				"To configure storefront non-interactively, pass --url and --token.")
		return sferr.New(sferr.CodeCLISetupFailure, "storefront init: not an interactive terminal")
	}

	m := newInitModel(store, path, c.cfg.API.BaseURL)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(parentContext(cmd)))
	finalModel, err := p.Run()
	if err != nil {
		return sferr.Errorf(sferr.CodeCLISetupFailure, "init wizard error: %w", err)
	}

	fm, ok := finalModel.(initModel)
	if !ok {
		return sferr.New(sferr.CodeCLISetupFailure, "unexpected model type after wizard")
	}
	if fm.errFinal != nil {
		return sferr.Errorf(sferr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}
	if fm.step == stepDone {
		// The alt screen is gone once the program exits.
		_, err = fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Storefront configured for "+fm.result.BaseURL))
		return err
	}
	// The user quit early.
	return nil
}

func runInitNonInteractive(cmd *cobra.Command, result initResult, store credentialStore, path string) error {
	if err := checkBaseURL(result.BaseURL); err != nil {
		return err
	}
	result.BaseURL = strings.TrimRight(result.BaseURL, "/")

	ctx, cancel := context.WithTimeout(parentContext(cmd), initValidateTimeout)
	defer cancel()
	if err := validateBackend(ctx, result); err != nil {
		return wrapRequest(err, "validating backend", sferr.Field("base_url", result.BaseURL))
	}
	if err := saveInitResult(result, store, path); err != nil {
		return wrapRequest(err, "saving configuration")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, successStyle.Render("Storefront configured for "+result.BaseURL))
	_, _ = fmt.Fprintln(out, dimStyle.Render("Config written to: "+path))
	if result.Token != "" {
		_, _ = fmt.Fprintln(out, dimStyle.Render("Token stored in the OS keyring"))
	}
	return nil
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
