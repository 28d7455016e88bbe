package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

// serverName is the key mtag registers under in agent MCP configs.
const serverName = "mtag"

// AgentDef defines how to detect and configure one MCP client.
type AgentDef struct {
	ID          string
	DisplayName string
	Method      string            // "cli" or "file"
	Binary      string            // for CLI agents: binary name on PATH
	DirMarkers  []string          // for file-based: dirs that indicate presence
	ConfigPath  func() string     // returns resolved config file path
	ServersKey  string            // "servers" (VS Code) or "mcpServers" (others)
	NeedsScope  bool              // whether to prompt for project/user scope
	ExtraFields map[string]string // extra JSON fields (e.g. "type": "stdio" for VS Code)
}

// DetectedAgent is an agent found on the system.
type DetectedAgent struct {
	Def            AgentDef
	AlreadySetup   bool
	ResolvedConfig string
}

type setupOptions struct {
	auto    bool
	callLog string
}

// Replaceable for testing.
var lookPathFunc = exec.LookPath
var statFunc = os.Stat
var runCommandFunc = func(name string, args []string, w io.Writer) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = w
	cmd.Stderr = w
	return cmd.Run()
}

var agentRegistry = []AgentDef{
	{
		ID: "claude_code", DisplayName: "Claude Code",
		Method: "cli", Binary: "claude", NeedsScope: true,
	},
	{
		ID: "openai_codex", DisplayName: "OpenAI Codex",
		Method: "cli", Binary: "codex", NeedsScope: true,
	},
	{
		ID: "vscode_copilot", DisplayName: "VS Code Copilot",
		Method: "file", DirMarkers: []string{".vscode"},
		ConfigPath:  func() string { return filepath.Join(".vscode", "mcp.json") },
		ServersKey:  "servers",
		ExtraFields: map[string]string{"type": "stdio"},
	},
	{
		ID: "cursor", DisplayName: "Cursor",
		Method: "file", DirMarkers: []string{".cursor"},
		ConfigPath: func() string { return filepath.Join(".cursor", "mcp.json") },
		ServersKey: "mcpServers",
	},
	{
		ID: "claude_desktop", DisplayName: "Claude Desktop",
		Method:     "file",
		ConfigPath: claudeDesktopConfigPath,
		ServersKey: "mcpServers",
	},
}

func claudeDesktopConfigPath() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Claude", "claude_desktop_config.json")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json")
	}
}

func newSetupCmd(a *app) *cobra.Command {
	var opts setupOptions

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the mtag MCP server with detected agents",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			executeSetup(a.stdin, a.stdout, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.auto, "auto", false, "configure every detected agent without prompting")
	cmd.Flags().StringVar(&opts.callLog, "call-log", "", "have the server log tool calls to this file")

	return cmd
}

// serverArgs is the argument list after the mtag binary.
func (o setupOptions) serverArgs() []string {
	args := []string{"serve"}
	if o.callLog != "" {
		args = append(args, "--call-log", o.callLog)
	}
	return args
}

// detectAgents scans the system for installed MCP clients.
func detectAgents() []DetectedAgent {
	var detected []DetectedAgent

	for _, def := range agentRegistry {
		switch def.Method {
		case "cli":
			if _, err := lookPathFunc(def.Binary); err == nil {
				detected = append(detected, DetectedAgent{
					Def:          def,
					AlreadySetup: isConfiguredIn(".mcp.json", "mcpServers"),
				})
			}

		case "file":
			found := false
			configPath := ""

			for _, marker := range def.DirMarkers {
				if _, err := statFunc(marker); err == nil {
					found = true
					configPath = def.ConfigPath()
					break
				}
			}

			// Agents without markers count as present when their config dir exists.
			if !found && len(def.DirMarkers) == 0 && def.ConfigPath != nil {
				configPath = def.ConfigPath()
				if _, err := statFunc(filepath.Dir(configPath)); err == nil {
					found = true
				}
			}

			if found {
				detected = append(detected, DetectedAgent{
					Def:            def,
					ResolvedConfig: configPath,
					AlreadySetup:   isConfiguredIn(configPath, def.ServersKey),
				})
			}
		}
	}

	return detected
}

// isConfiguredIn reports whether the JSON file at path already has an mtag
// entry under serversKey.
func isConfiguredIn(path, serversKey string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var config map[string]any
	if err := json.Unmarshal(data, &config); err != nil {
		return false
	}
	servers, ok := config[serversKey].(map[string]any)
	if !ok {
		return false
	}
	_, exists := servers[serverName]
	return exists
}

func serverEntry(args []string, extra map[string]string) map[string]any {
	anyArgs := make([]any, len(args))
	for i, arg := range args {
		anyArgs[i] = arg
	}

	entry := map[string]any{
		"command": serverName,
		"args":    anyArgs,
	}
	for k, v := range extra {
		entry[k] = v
	}
	return entry
}

// mergeServerEntry adds an mtag entry under serversKey to existing JSON (or
// a new document). Returns nil, nil when mtag is already configured.
func mergeServerEntry(existing []byte, serversKey string, args []string, extra map[string]string) ([]byte, error) {
	config := make(map[string]any)
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &config); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}

	servers, ok := config[serversKey].(map[string]any)
	if !ok {
		servers = make(map[string]any)
	}
	if _, exists := servers[serverName]; exists {
		return nil, nil
	}

	servers[serverName] = serverEntry(args, extra)
	config[serversKey] = servers

	out, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// configureCLIAgent runs `<binary> mcp add` with the chosen scope.
func configureCLIAgent(w io.Writer, def AgentDef, scope string, serverArgs []string) error {
	args := []string{"mcp", "add"}
	if scope != "" {
		args = append(args, "--scope", scope)
	}
	args = append(args, serverName, "--", serverName)
	args = append(args, serverArgs...)
	return runCommandFunc(def.Binary, args, w)
}

func configureFileAgent(def AgentDef, configPath string, serverArgs []string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	var existing []byte
	if data, err := os.ReadFile(configPath); err == nil {
		existing = data
	}

	merged, err := mergeServerEntry(existing, def.ServersKey, serverArgs, def.ExtraFields)
	if err != nil {
		return err
	}
	if merged == nil {
		return nil
	}

	return os.WriteFile(configPath, merged, 0644)
}

// promptYesNo prints a question and reads Y/n. Empty input and EOF mean yes.
func promptYesNo(scanner *bufio.Scanner, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s ", question)
	if !scanner.Scan() {
		return true
	}
	answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
	return answer == "" || answer == "y" || answer == "yes"
}

// promptScope returns "project", "user", or "" to skip.
func promptScope(scanner *bufio.Scanner, w io.Writer, agentName string) string {
	fmt.Fprintf(w, "\n%s: add the mtag MCP server?\n", agentName)
	fmt.Fprintln(w, "  [1] Project scope (shared with team)")
	fmt.Fprintln(w, "  [2] User scope (personal, global)")
	fmt.Fprintln(w, "  [3] Skip")
	fmt.Fprintf(w, "  > ")

	if !scanner.Scan() {
		return "project"
	}
	switch strings.TrimSpace(scanner.Text()) {
	case "1", "":
		return "project"
	case "2":
		return "user"
	default:
		return ""
	}
}

// executeSetup is the testable core of `mtag setup`.
func executeSetup(r io.Reader, w io.Writer, opts setupOptions) {
	detected := detectAgents()
	if len(detected) == 0 {
		fmt.Fprintln(w, "No supported MCP clients detected.")
		return
	}

	fmt.Fprintln(w, "Detected MCP clients:")
	for _, d := range detected {
		if d.AlreadySetup {
			fmt.Fprintf(w, "  * %s (already configured)\n", d.Def.DisplayName)
		} else {
			fmt.Fprintf(w, "  * %s\n", d.Def.DisplayName)
		}
	}
	fmt.Fprintln(w)

	// One scanner for the whole session so buffered answers are not lost
	// between prompts.
	scanner := bufio.NewScanner(r)
	if !opts.auto && !promptYesNo(scanner, w, "Configure them? [Y/n]") {
		return
	}

	for _, d := range detected {
		if d.AlreadySetup {
			fmt.Fprintf(w, "\n%s already configured, skipping\n", d.Def.DisplayName)
			continue
		}
		configureOneAgent(scanner, w, d, opts)
	}
}

func configureOneAgent(scanner *bufio.Scanner, w io.Writer, d DetectedAgent, opts setupOptions) {
	switch d.Def.Method {
	case "cli":
		scope := "project"
		if !opts.auto && d.Def.NeedsScope {
			if scope = promptScope(scanner, w, d.Def.DisplayName); scope == "" {
				fmt.Fprintf(w, "  skipped\n")
				return
			}
		}
		if err := configureCLIAgent(w, d.Def, scope, opts.serverArgs()); err != nil {
			fmt.Fprintf(w, "  ! %s: failed: %v\n", d.Def.DisplayName, err)
			return
		}
		fmt.Fprintf(w, "  + %s configured (scope: %s)\n", d.Def.DisplayName, scope)

	case "file":
		if !opts.auto && !promptYesNo(scanner, w, fmt.Sprintf("\n%s: add to %s? [Y/n]", d.Def.DisplayName, d.ResolvedConfig)) {
			fmt.Fprintf(w, "  skipped\n")
			return
		}
		if err := configureFileAgent(d.Def, d.ResolvedConfig, opts.serverArgs()); err != nil {
			fmt.Fprintf(w, "  ! %s: failed: %v\n", d.Def.DisplayName, err)
			return
		}
		fmt.Fprintf(w, "  + %s configured (%s)\n", d.Def.DisplayName, d.ResolvedConfig)
	}
}
