package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ramble-hpc/ramble/internal/registry"
)

func TestSuggestSubstringCaseInsensitive(t *testing.T) {
	got := registry.Suggest([]string{"gromacs", "wrfv4", "openfoam"}, "GROM")
	require.Equal(t, []string{"gromacs"}, got)
}

func TestSuggestNoMatches(t *testing.T) {
	got := registry.Suggest([]string{"gromacs", "wrfv4"}, "nonexistent")
	require.Empty(t, got)
}

func TestSuggestMultipleMatches(t *testing.T) {
	got := registry.Suggest([]string{"wrfv4", "wrf-chem", "gromacs"}, "wrf")
	require.Equal(t, []string{"wrfv4", "wrf-chem"}, got)
}

func TestSuggestApplicationAndModifierUseRegistry(t *testing.T) {
	registry.RegisterApplication(registry.NewGenericApplication("gromacs-suggest-test", registry.ApplicationDescriptor{}))
	registry.RegisterModifier(registry.NewGenericModifier("allocation-suggest-test", registry.ModifierDescriptor{}))

	require.Contains(t, registry.SuggestApplication("gromacs-suggest"), "gromacs-suggest-test")
	require.Contains(t, registry.SuggestModifier("allocation-suggest"), "allocation-suggest-test")
}
