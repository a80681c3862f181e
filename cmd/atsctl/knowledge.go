package main

import (
	"fmt"

	"ats-engine/internal/knowledge"

	"github.com/spf13/cobra"
)

var skillsCmd = &cobra.Command{
	Use:   "skills SKILL_A SKILL_B",
	Short: "Check whether two skills are treated as equivalent",
	Args:  cobra.ExactArgs(2),
	RunE:  runSkills,
}

var rolesCmd = &cobra.Command{
	Use:   "roles ROLE_A ROLE_B",
	Short: "Check role equivalence in both directions",
	Long: `Role equivalence is directional: a token of ROLE_A (or one of its synonyms)
must appear in ROLE_B. Both directions are printed.`,
	Args: cobra.ExactArgs(2),
	RunE: runRoles,
}

func init() {
	rootCmd.AddCommand(skillsCmd, rolesCmd)
}

func loadKnowledge() (*knowledge.Base, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return knowledge.LoadFile(cfg.Knowledge.TablesPath)
}

func runSkills(cmd *cobra.Command, args []string) error {
	kb, err := loadKnowledge()
	if err != nil {
		return err
	}
	a, b := args[0], args[1]
	out := cmd.OutOrStdout()
	m, ok := kb.SkillMatch(a, b)
	if !ok {
		fmt.Fprintf(out, "%s ~ %s: false\n", a, b)
		return nil
	}
	fmt.Fprintf(out, "%s ~ %s: true (%s)\n%s\n", a, b, m.Kind, m.Reason(a, b))
	return nil
}

func runRoles(cmd *cobra.Command, args []string) error {
	kb, err := loadKnowledge()
	if err != nil {
		return err
	}
	a, b := args[0], args[1]
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s -> %s: %t\n", a, b, kb.RoleEquivalent(a, b))
	fmt.Fprintf(out, "%s -> %s: %t\n", b, a, kb.RoleEquivalent(b, a))
	return nil
}
