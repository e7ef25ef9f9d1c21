package generator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqdoc/internal/config"
	"reqdoc/internal/diag"
	"reqdoc/internal/extractor"
	"reqdoc/internal/section"
)

func newReq(file string, line int, original string, steps, verifications []string) *extractor.Requirement {
	r := extractor.NewRequirement(file, line, original)
	r.Steps = steps
	r.Verifications = verifications
	return r
}

func fixtureSections() []*section.Section {
	users := section.New("Users", "", []string{"users_test.go"})
	users.Requirements = []*extractor.Requirement{
		newReq("repo/users_test.go", 3, "CreatesAUser", []string{"S1: Post user", "S2: Read it"}, []string{"V1: Verify 201"}),
		newReq("repo/users_test.go", 9, "DeletesAUser", []string{"S1: Delete user"}, []string{"V1: Verify 204"}),
	}
	ignore := section.New(section.Ignore, "", []string{"scratch_test.go"})
	ignore.Requirements = []*extractor.Requirement{
		newReq("repo/scratch_test.go", 1, "Scratch", nil, []string{"V1: x"}),
	}
	admin := section.New("Admin", "", []string{"admin_test.go"})
	admin.Requirements = []*extractor.Requirement{
		newReq("repo/admin_test.go", 5, "ListsAdmins", []string{"S1: List"}, []string{"V1: Verify list|all"}),
	}
	misc := section.New(section.Miscellaneous, "", nil)
	return []*section.Section{users, ignore, admin, misc}
}

func fixtureGroup() config.Group {
	return config.Group{
		Name:            "web_api",
		Tag:             "API",
		ReqTemplatePath: Builtin,
		VerTemplatePath: Builtin,
		ReqOutputName:   "API Requirements.md",
		VerOutputName:   "API Verification.md",
	}
}

const wantRequirements = `# Users

## **API:DO:1** Creates a user
## **API:DO:2** Deletes a user

# Admin

## **API:DO:3** Lists admins
`

const wantVerification = `# Verification Test Protocol

## **API:VER:1** Users

| # | Test Steps | Verifications |
|---|---|---|
| 1. | S1: Post user<br>S2: Read it | V1: Verify 201<br>**[API:DO:1]** |
| 2. | S1: Delete user | V1: Verify 204<br>**[API:DO:2]** |

## **API:VER:2** Admin

| # | Test Steps | Verifications |
|---|---|---|
| 3. | S1: List | V1: Verify list\|all<br>**[API:DO:3]** |
`

func TestGenerator_Generate(t *testing.T) {
	out := t.TempDir()
	d := diag.NewCollector(nil)
	g := NewGenerator(nil, d, Options{OutputDir: out})
	sections := fixtureSections()

	res, err := g.Generate(fixtureGroup(), sections)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "API Requirements.md"), res.RequirementsPath)
	assert.Equal(t, filepath.Join(out, "API Verification.md"), res.VerificationPath)
	assert.Equal(t, 3, res.Requirements)
	assert.Equal(t, 2, res.Sections)

	got, err := os.ReadFile(res.RequirementsPath)
	require.NoError(t, err)
	assert.Equal(t, wantRequirements, string(got))

	got, err = os.ReadFile(res.VerificationPath)
	require.NoError(t, err)
	assert.Equal(t, wantVerification, string(got))

	assert.Equal(t, 0, sections[1].Requirements[0].Number, "ignored requirements are not numbered")
	require.Equal(t, 1, d.Count(diag.EmptySection))
	assert.Equal(t, "No requirements in section 'Miscellaneous' for tag 'API'. Skipping section.", d.Items()[0].Message)
}

func TestGenerator_Debug(t *testing.T) {
	g := NewGenerator(nil, nil, Options{Debug: true, OutputDir: t.TempDir()})
	res, err := g.Generate(fixtureGroup(), fixtureSections())
	require.NoError(t, err)

	got, err := os.ReadFile(res.RequirementsPath)
	require.NoError(t, err)
	assert.Contains(t, string(got), "## **API:DO:1** Creates a user _(users_test.go:3)_\n")

	got, err = os.ReadFile(res.VerificationPath)
	require.NoError(t, err)
	assert.Contains(t, string(got), "**[API:DO:3]**<br>_(admin_test.go:5)_ |")
}

func TestGenerator_TemplateFile(t *testing.T) {
	dir := t.TempDir()
	tmplPath := filepath.Join(dir, "req.md.tmpl")
	require.NoError(t, os.WriteFile(tmplPath, []byte(
		"Requirements for {{.Tag}}\n{{range .Sections}}{{range .Requirements}}{{$.Tag}}-{{.Number}} {{.Text}}\n{{end}}{{end}}"), 0o644))

	group := fixtureGroup()
	group.ReqTemplatePath = tmplPath
	g := NewGenerator(nil, nil, Options{})

	res, err := g.Generate(group, fixtureSections())
	t.Cleanup(func() { os.RemoveAll(OutputsDir) })
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, OutputsDir, "API Requirements.md"), res.RequirementsPath)
	got, err := os.ReadFile(res.RequirementsPath)
	require.NoError(t, err)
	assert.Equal(t, "Requirements for API\nAPI-1 Creates a user\nAPI-2 Deletes a user\nAPI-3 Lists admins\n", string(got))
}

func TestGenerator_MissingTemplate(t *testing.T) {
	group := fixtureGroup()
	group.VerTemplatePath = filepath.Join(t.TempDir(), "missing.tmpl")
	g := NewGenerator(nil, nil, Options{OutputDir: t.TempDir()})
	_, err := g.Generate(group, fixtureSections())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verification document")
}

func TestGenerator_OutputPath(t *testing.T) {
	g := NewGenerator(nil, nil, Options{})
	assert.Equal(t, filepath.Join("docs", OutputsDir, "a.md"), g.OutputPath(filepath.Join("docs", "req.tmpl"), "a.md"))
	assert.Equal(t, filepath.Join(OutputsDir, "a.md"), g.OutputPath(Builtin, "a.md"))

	g = NewGenerator(nil, nil, Options{OutputDir: "out"})
	assert.Equal(t, filepath.Join("out", "a.md"), g.OutputPath(filepath.Join("docs", "req.tmpl"), "a.md"))
}

func TestNumber(t *testing.T) {
	sections := fixtureSections()
	Number(sections)
	var got []int
	for _, s := range sections {
		for _, r := range s.Requirements {
			got = append(got, r.Number)
		}
	}
	assert.Equal(t, []int{1, 2, 0, 3}, got)
}
