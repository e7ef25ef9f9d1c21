package extractor

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqdoc/internal/diag"
	"reqdoc/internal/profile"
)

func mustProfile(t *testing.T, name string) profile.Profile {
	t.Helper()
	p, err := profile.Lookup(name)
	require.NoError(t, err)
	return p
}

func goFixtureWant(path string) []*Requirement {
	return []*Requirement{
		{
			OriginalText:  "WhenAGetRequestIsMadeToThe_S_v1_S_usersEndpoint_ThenAnEmptyArrayShallBeReturned",
			Text:          "When a get request is made to the /v 1/users endpoint, then an empty array shall be returned",
			Steps:         []string{"S1: Make a GET request to /v1/users"},
			Verifications: []string{"V2: Verify the body is an empty array", "V1: Verify that response is 200 OK"},
			File:          path,
			Filename:      "users_test.go",
			Line:          12,
		},
		{
			OriginalText:  "Creates_anOrganization",
			Text:          "Creates an organization",
			Steps:         []string{"S1: Send the create request", "S2: Read the response"},
			Verifications: []string{"V1: Verify the organization exists"},
			File:          path,
			Filename:      "users_test.go",
			Line:          22,
		},
		{
			OriginalText: "NothingVerified",
			Text:         "Nothing verified",
			Steps:        []string{"S1: Do something"},
			File:         path,
			Filename:     "users_test.go",
			Line:         28,
		},
	}
}

func TestExtractor_ExtractFromFile(t *testing.T) {
	path := filepath.Join("testdata", "users_test.go")

	for _, mode := range []string{ModeRegex, ModeSyntax} {
		t.Run(mode, func(t *testing.T) {
			d := diag.NewCollector(nil)
			ext, err := NewExtractor(mustProfile(t, profile.Golang), mode, d)
			require.NoError(t, err)

			reqs, err := ext.ExtractFromFile(path)
			require.NoError(t, err)

			if diff := cmp.Diff(goFixtureWant(path), reqs); diff != "" {
				t.Errorf("requirements mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, 1, d.Count(diag.StepWithoutRequirement), "stray helper step should be reported")
		})
	}
}

func TestExtractor_MissingFile(t *testing.T) {
	ext, err := NewExtractor(mustProfile(t, profile.Golang), "", nil)
	require.NoError(t, err)
	_, err = ext.ExtractFromFile(filepath.Join("testdata", "missing_test.go"))
	assert.Error(t, err)
}

func TestNewExtractor_Modes(t *testing.T) {
	_, err := NewExtractor(mustProfile(t, profile.Python), ModeSyntax, nil)
	assert.Error(t, err, "python has no syntax extractor")

	_, err = NewExtractor(mustProfile(t, profile.Golang), "ast", nil)
	assert.Error(t, err)
}

func TestLineScanner_ExtractLines(t *testing.T) {
	t.Run("orphan annotations are reported and dropped", func(t *testing.T) {
		d := diag.NewCollector(nil)
		s := &LineScanner{Profile: mustProfile(t, profile.Python), Diag: d}
		reqs := s.ExtractLines("tests/test_login.py", []string{
			"# S1: too early",
			"# V1: also too early",
			"def test_login_works(self):",
			"    # S1: Log in",
			"    # V1: Verify the session",
		})
		require.Len(t, reqs, 1)
		assert.Equal(t, "Login works", reqs[0].Text)
		assert.Equal(t, 3, reqs[0].Line)
		assert.Equal(t, []string{"S1: Log in"}, reqs[0].Steps)
		assert.Equal(t, []string{"V1: Verify the session"}, reqs[0].Verifications)
		assert.Equal(t, 1, d.Count(diag.StepWithoutRequirement))
		assert.Equal(t, 1, d.Count(diag.VerificationWithoutRequirement))
	})

	t.Run("requirements keep file order", func(t *testing.T) {
		s := &LineScanner{Profile: mustProfile(t, profile.JavaScript)}
		reqs := s.ExtractLines("a.test.js", []string{
			"it('second thing', () => {",
			"  // V1: check b",
			"});",
			"it('first thing', () => {",
			"  // V1: check a",
			"});",
		})
		require.Len(t, reqs, 2)
		assert.Equal(t, "Second thing", reqs[0].Text)
		assert.Equal(t, "First thing", reqs[1].Text)
		assert.Equal(t, 4, reqs[1].Line)
	})

	t.Run("empty file", func(t *testing.T) {
		s := &LineScanner{Profile: mustProfile(t, profile.Golang)}
		assert.Empty(t, s.ExtractLines("x_test.go", nil))
	})
}

func TestLineScanner_Lookahead(t *testing.T) {
	path := filepath.Join("testdata", "login_bloc_test.dart")
	ext, err := NewExtractor(mustProfile(t, profile.Dart), ModeRegex, nil)
	require.NoError(t, err)

	reqs, err := ext.ExtractFromFile(path)
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	assert.Equal(t, "emits success when credentials are valid", reqs[0].OriginalText)
	assert.Equal(t, "Emits success when credentials are valid", reqs[0].Text)
	assert.Equal(t, 4, reqs[0].Line, "line of the blocTest marker")
	assert.Equal(t, []string{"S1: Submit valid credentials"}, reqs[0].Steps)
	assert.Equal(t, []string{"V1: Verify success state is emitted"}, reqs[0].Verifications)

	assert.Equal(t, "Parses the token", reqs[1].Text)
	assert.Equal(t, 12, reqs[1].Line)
}

func TestLineScanner_LookaheadWindow(t *testing.T) {
	s := &LineScanner{Profile: mustProfile(t, profile.Dart)}
	reqs := s.ExtractLines("x_test.dart", []string{
		"blocTest<A, B>(",
		"  build: () => A(),",
		"  seed: () => B(),",
		"  act: (a) => a.go(),",
		"  'too far away',",
		");",
	})
	assert.Empty(t, reqs, "title beyond three lines is not picked up")
}

func TestLineScanner_TwoLineMarkers(t *testing.T) {
	path := filepath.Join("testdata", "LoginTest.java")
	ext, err := NewExtractor(mustProfile(t, profile.Java), ModeRegex, nil)
	require.NoError(t, err)

	reqs, err := ext.ExtractFromFile(path)
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	assert.Equal(t, "Shows the login form", reqs[0].Text)
	assert.Equal(t, 4, reqs[0].Line)
	assert.Equal(t, []string{"V1: Verify the form"}, reqs[0].Verifications)

	assert.Equal(t, "Rejects bad password", reqs[1].Text)
	assert.Equal(t, 11, reqs[1].Line)

	t.Run("after a one-line declaration", func(t *testing.T) {
		tests := []struct {
			lang  string
			lines []string
			want  []string
		}{
			{
				lang: profile.CSharp,
				lines: []string{
					"    [Test] public void TestFirstThing() { Assert.Pass(); } // V1: one",
					"    [Test]",
					"    public void TestSecondThing() {",
					"        // V1: Verify second",
					"    }",
				},
				want: []string{"First thing", "Second thing"},
			},
			{
				lang: profile.Java,
				lines: []string{
					"    void testFirst() {}",
					"    @Test",
					"    public void secondThing() {",
					"        // V1: Verify second",
					"    }",
				},
				want: []string{"First", "Second thing"},
			},
		}
		for _, tt := range tests {
			t.Run(tt.lang, func(t *testing.T) {
				s := &LineScanner{Profile: mustProfile(t, tt.lang)}
				reqs := s.ExtractLines("T", tt.lines)
				require.Len(t, reqs, 2)
				assert.Equal(t, tt.want[0], reqs[0].Text)
				assert.Empty(t, reqs[0].Verifications)
				assert.Equal(t, tt.want[1], reqs[1].Text)
				assert.Equal(t, 2, reqs[1].Line)
				assert.Equal(t, []string{"V1: Verify second"}, reqs[1].Verifications)
			})
		}
	})
}

func TestRequirement_SortVerifications(t *testing.T) {
	r := &Requirement{
		Steps:         []string{"S2: second", "S1: first"},
		Verifications: []string{"V10: ten", "V2: two", "V1: one", "Vx: broken"},
	}
	r.SortVerifications()
	assert.Equal(t, []string{"V1: one", "V2: two", "V10: ten", "Vx: broken"}, r.Verifications)
	assert.Equal(t, []string{"S2: second", "S1: first"}, r.Steps, "steps keep source order")
}

func TestNewRequirement(t *testing.T) {
	r := NewRequirement("a/b/c_test.go", 7, "fooBarBaz")
	assert.Equal(t, "Foo bar baz", r.Text)
	assert.Equal(t, "c_test.go", r.Filename)
	assert.Equal(t, "c_test.go:7", r.Location())
}
