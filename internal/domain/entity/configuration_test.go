package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkConfigurationValidate(t *testing.T) {
	valid := NetworkConfiguration{
		RPCURL:  "https://rpc.example.com",
		ChainID: "0x5",
		Ticker:  "ETH",
	}
	require.NoError(t, valid.Validate())

	bad := valid
	bad.ChainID = "5"
	assert.Error(t, bad.Validate(), "non-hex chain id")

	bad = valid
	bad.Ticker = "  "
	assert.Error(t, bad.Validate(), "blank ticker")

	bad = valid
	bad.RPCURL = "not a url"
	assert.Error(t, bad.Validate(), "unparseable URL")

	bad = valid
	bad.RPCURL = "/relative/path"
	assert.Error(t, bad.Validate(), "relative URL")
}

func TestFindByRPCURLIsCaseInsensitive(t *testing.T) {
	ncs := NetworkConfigurations{
		"id-1": {ID: "id-1", RPCURL: "https://Foo/", ChainID: "0x5", Ticker: "T"},
	}

	found, ok := ncs.FindByRPCURL("https://foo/")
	require.True(t, ok)
	assert.Equal(t, "id-1", found.ID)

	_, ok = ncs.FindByRPCURL("https://bar/")
	assert.False(t, ok)
}

func TestNetworkConfigurationsCloneIsIndependent(t *testing.T) {
	ncs := NetworkConfigurations{
		"id-1": {ID: "id-1", RPCURL: "https://foo/", ChainID: "0x5", Ticker: "T"},
	}
	clone := ncs.Clone()
	delete(clone, "id-1")

	assert.Len(t, ncs, 1)
	assert.Empty(t, clone)
}
