package adapter

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/deployhub/internal/config"
	"github.com/edvin/deployhub/internal/model"
)

func testFactory(cfg *config.Config) *Factory {
	return NewFactory(cfg, zerolog.Nop())
}

func TestFactory_Get_Manual(t *testing.T) {
	f := testFactory(&config.Config{})

	ad, err := f.Get(model.BackendManual)
	require.NoError(t, err)
	assert.IsType(t, &ManualAdapter{}, ad)
}

func TestFactory_Get_UnknownKind(t *testing.T) {
	f := testFactory(&config.Config{})

	ad, err := f.Get("nomad")
	assert.Nil(t, ad)
	assert.ErrorContains(t, err, "unknown backend kind")
}

func TestFactory_Get_CachesAdapters(t *testing.T) {
	f := testFactory(&config.Config{})

	first, err := f.Get(model.BackendManual)
	require.NoError(t, err)
	second, err := f.Get(model.BackendManual)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestFactory_Get_AWXRequiresURL(t *testing.T) {
	f := testFactory(&config.Config{})

	_, err := f.Get(model.BackendAWX)
	assert.ErrorContains(t, err, "AWX_URL")
}

func TestFactory_Get_TerraformRequiresWorkdir(t *testing.T) {
	f := testFactory(&config.Config{TerraformBin: "terraform"})

	_, err := f.Get(model.BackendTerraform)
	assert.ErrorContains(t, err, "TERRAFORM_WORKDIR")
}
