package profile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			p, err := Lookup(name)
			require.NoError(t, err)
			assert.Equal(t, name, p.Name)
			assert.NotEmpty(t, p.Extension)
			assert.NotEmpty(t, p.Requirements)
			assert.NotNil(t, p.Step)
			assert.NotNil(t, p.Verification)
			assert.NotEmpty(t, p.Detect)
		})
	}

	t.Run("case insensitive", func(t *testing.T) {
		p, err := Lookup("  GoLang ")
		require.NoError(t, err)
		assert.Equal(t, ".go", p.Extension)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := Lookup("cobol")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnsupportedLanguage))
		assert.Contains(t, err.Error(), "golang")
	})
}

func TestMatchRequirement(t *testing.T) {
	tests := []struct {
		lang  string
		lines []string
		want  string
		span  int
		note  bool
	}{
		{Golang, []string{"func Test_GivenX_ThenY(t *testing.T) {"}, "GivenX_ThenY", 1, false},
		{Golang, []string{"func TestPlain(t *testing.T) {"}, "Plain", 1, false},
		{Swift, []string{"    func testREQ001_ValidLogin() async throws {"}, "REQ001_ValidLogin", 1, false},
		{Python, []string{"    def test_login_works(self):"}, "login_works", 1, false},
		{JavaScript, []string{"  it('creates a user', () => {"}, "creates a user", 1, false},
		{TypeScript, []string{`test ("handles errors", async () => {`}, "handles errors", 1, false},
		{Java, []string{`  @DisplayName("Shows the login form")`}, "Shows the login form", 1, true},
		{Java, []string{"  @Test", "  public void loginWorks() {"}, "loginWorks", 2, false},
		{CSharp, []string{"[Test] public void TestSavesOrder() {"}, "SavesOrder", 1, false},
		{CSharp, []string{"    [Fact]", "    public void SavesOrder()"}, "SavesOrder", 2, false},
		{Dart, []string{"  testWidgets('renders title', (tester) async {"}, "renders title", 1, false},
		{Dart, []string{"  blocTest<LoginBloc, LoginState>('emits success',"}, "emits success", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.want, func(t *testing.T) {
			p, err := Lookup(tt.lang)
			require.NoError(t, err)
			m, ok := p.MatchRequirement(tt.lines, 0)
			require.True(t, ok)
			assert.Equal(t, tt.want, m.Text)
			assert.Equal(t, tt.span, m.Span)
			assert.Equal(t, tt.note, m.Annotation)
		})
	}

	t.Run("no match", func(t *testing.T) {
		p, _ := Lookup(Golang)
		_, ok := p.MatchRequirement([]string{"func helper() {}"}, 0)
		assert.False(t, ok)
	})

	t.Run("window past end of file", func(t *testing.T) {
		p, _ := Lookup(Java)
		_, ok := p.MatchRequirement([]string{"  @Test"}, 0)
		assert.False(t, ok)
	})
}

func TestStepAndVerificationPatterns(t *testing.T) {
	p, _ := Lookup(Golang)
	m := p.Step.FindStringSubmatch("\t// S1: Make a GET request")
	require.NotNil(t, m)
	assert.Equal(t, "S1: Make a GET request", m[1])
	assert.Nil(t, p.Step.FindStringSubmatch("// S1: not indented"))

	m = p.Verification.FindStringSubmatch("    //V12:  Verify status")
	require.NotNil(t, m)
	assert.Equal(t, "V12:  Verify status", m[1])

	py, _ := Lookup(Python)
	m = py.Verification.FindStringSubmatch("# V2: response is empty")
	require.NotNil(t, m)
	assert.Equal(t, "V2: response is empty", m[1])
}

func TestIsTestLine(t *testing.T) {
	tests := []struct {
		lang string
		line string
		want bool
	}{
		{Golang, `import "testing"`, true},
		{Golang, `	"testing"`, true},
		{Golang, `	"fmt"`, false},
		{Swift, "import XCTest", true},
		{Swift, "final class LoginViewTests: XCTestCase {", true},
		{Python, "import pytest", true},
		{Python, "class TestLogin(unittest.TestCase):", true},
		{JavaScript, `import { expect } from "chai";`, true},
		{TypeScript, "describe('x', () => {", true},
		{Java, "import org.junit.jupiter.api.Test;", true},
		{CSharp, "using Xunit;", true},
		{Dart, "import 'package:flutter_test/flutter_test.dart';", true},
		{Dart, "import 'package:flutter/material.dart';", false},
	}
	for _, tt := range tests {
		p, err := Lookup(tt.lang)
		require.NoError(t, err)
		assert.Equal(t, tt.want, p.IsTestLine(tt.line), "%s: %q", tt.lang, tt.line)
	}
}
