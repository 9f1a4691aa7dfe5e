package schema

// SkillInfo holds metadata about a single skill.
type SkillInfo struct {
	Name   string // directory name
	Path   string // absolute path to SKILL.md
	Source string // "workspace" or "builtin"
}
