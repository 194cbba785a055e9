package selector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyComplexity(t *testing.T) {
	t.Run("empty and short texts are simple", func(t *testing.T) {
		assert.Equal(t, ComplexitySimple, ClassifyComplexity(""))
		assert.Equal(t, ComplexitySimple, ClassifyComplexity("good morning"))
		assert.Equal(t, ComplexitySimple, ClassifyComplexity("how are you today"))
	})

	t.Run("long prose is moderate or above", func(t *testing.T) {
		text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 8)
		got := ClassifyComplexity(text)
		assert.NotEqual(t, ComplexitySimple, got)
	})

	t.Run("long symbol-dense technical text is complex", func(t *testing.T) {
		text := strings.Repeat("reconfigure kubernetes-deployment {replicas: 42}; ", 25)
		assert.Equal(t, ComplexityComplex, ClassifyComplexity(text))
	})

	t.Run("deterministic", func(t *testing.T) {
		text := "some arbitrary input text for stability checking"
		first := ClassifyComplexity(text)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, ClassifyComplexity(text))
		}
	})
}

func TestClassifyDomain(t *testing.T) {
	t.Run("hint wins", func(t *testing.T) {
		assert.Equal(t, DomainLegal, ClassifyDomain("hello", DomainLegal))
	})

	t.Run("general hint falls through to patterns", func(t *testing.T) {
		assert.Equal(t, DomainTechnical, ClassifyDomain("restart the api server", DomainGeneral))
	})

	t.Run("keyword matches", func(t *testing.T) {
		cases := map[string]Domain{
			"the patient reported new symptoms":              DomainMedical,
			"pursuant to clause 4 the defendant shall":       DomainLegal,
			"deploy the database to the kubernetes endpoint": DomainTechnical,
			"the protagonist of this novel speaks in verse":  DomainCreative,
			"see you at the bakery tomorrow":                 DomainGeneral,
		}
		for text, want := range cases {
			assert.Equal(t, want, ClassifyDomain(text, ""), text)
		}
	})

	t.Run("medical outranks technical", func(t *testing.T) {
		assert.Equal(t, DomainMedical, ClassifyDomain("the clinical api for patient dosage", ""))
	})
}
