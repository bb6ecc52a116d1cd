package registry

// catalog is the static, code-embedded method catalog. It is the sole
// source of truth for which JSON-RPC methods the gateway will ever forward
// to the backend daemon; anything not listed here is refused unconditionally
// as method_not_allowed.
var catalog = []MethodDefinition{
	// --- core ---
	{
		Name:                "getinfo",
		ReadOnly:            true,
		SecurityLevel:       LevelPublic,
		Enabled:             true,
		RequiredPermissions: nil,
		Params:              nil,
	},
	{
		Name:                "getnetworkinfo",
		ReadOnly:            true,
		SecurityLevel:       LevelPublic,
		Enabled:             true,
		RequiredPermissions: nil,
		Params:              nil,
	},
	{
		Name:                "getpeerinfo",
		ReadOnly:            true,
		SecurityLevel:       LevelAuthenticated,
		Enabled:             true,
		RequiredPermissions: []string{"read"},
		Params:              nil,
	},

	// --- blocks ---
	{
		Name:                "getblockcount",
		ReadOnly:            true,
		SecurityLevel:       LevelPublic,
		Enabled:             true,
		RequiredPermissions: nil,
		Params:              nil,
	},
	{
		Name:          "getblockhash",
		ReadOnly:      true,
		SecurityLevel: LevelPublic,
		Enabled:       true,
		Params: []ParamRule{
			{
				Index: 0, Name: "height", ParamType: TypeInteger, Required: true,
				Constraints: []Constraint{{MinValue: floatPtr(0)}},
			},
		},
	},
	{
		Name:          "getblock",
		ReadOnly:      true,
		SecurityLevel: LevelPublic,
		Enabled:       true,
		Params: []ParamRule{
			{
				Index: 0, Name: "hash", ParamType: TypeHexString, Required: true,
				Constraints: []Constraint{
					{MinLength: intPtr(64), MaxLength: intPtr(64)},
					{Pattern: `^[0-9a-fA-F]{64}$`},
				},
			},
			{
				Index: 1, Name: "verbosity", ParamType: TypeInteger, Required: false,
				Constraints: []Constraint{{MinValue: floatPtr(0), MaxValue: floatPtr(2)}},
			},
		},
	},

	// --- transactions ---
	{
		Name:          "getrawtransaction",
		ReadOnly:      true,
		SecurityLevel: LevelAuthenticated,
		Enabled:       true,
		RequiredPermissions: []string{"read"},
		Params: []ParamRule{
			{
				Index: 0, Name: "txid", ParamType: TypeHexString, Required: true,
				Constraints: []Constraint{{Custom: "hex-32-bytes"}},
			},
			{
				Index: 1, Name: "verbose", ParamType: TypeBoolean, Required: false,
			},
		},
	},
	{
		Name:          "gettransaction",
		ReadOnly:      true,
		SecurityLevel: LevelAuthenticated,
		Enabled:       true,
		RequiredPermissions: []string{"read"},
		Params: []ParamRule{
			{
				Index: 0, Name: "txid", ParamType: TypeHexString, Required: true,
				Constraints: []Constraint{{Custom: "hex-32-bytes"}},
			},
		},
	},

	// --- write ---
	{
		Name:          "sendrawtransaction",
		ReadOnly:      false,
		SecurityLevel: LevelAuthenticated,
		Enabled:       true,
		RequiredPermissions: []string{"write"},
		Params: []ParamRule{
			{
				Index: 0, Name: "rawtx_hex", ParamType: TypeHexString, Required: true,
				Constraints: []Constraint{
					{MinLength: intPtr(10), MaxLength: intPtr(200000)},
					{Pattern: `^[0-9a-fA-F]+$`},
				},
			},
		},
	},
	{
		Name:          "z_sendmany",
		ReadOnly:      false,
		SecurityLevel: LevelPrivileged,
		Enabled:       true,
		RequiredPermissions: []string{"write", "paid"},
		Params: []ParamRule{
			{Index: 0, Name: "from_address", ParamType: TypeString, Required: true,
				Constraints: []Constraint{{Custom: "shielded-address-kind"}}},
			{Index: 1, Name: "amounts", ParamType: TypeArray, Required: true},
		},
	},

	// --- identity ---
	{
		Name:          "z_validateaddress",
		ReadOnly:      true,
		SecurityLevel: LevelPublic,
		Enabled:       true,
		Params: []ParamRule{
			{Index: 0, Name: "address", ParamType: TypeString, Required: true,
				Constraints: []Constraint{{MinLength: intPtr(1), MaxLength: intPtr(128)}}},
		},
	},
	{
		Name:          "validateaddress",
		ReadOnly:      true,
		SecurityLevel: LevelPublic,
		Enabled:       true,
		Params: []ParamRule{
			{Index: 0, Name: "address", ParamType: TypeString, Required: true,
				Constraints: []Constraint{{MinLength: intPtr(1), MaxLength: intPtr(128)}}},
		},
	},

	// --- currency ---
	{
		Name:          "z_gettotalbalance",
		ReadOnly:      true,
		SecurityLevel: LevelAuthenticated,
		Enabled:       true,
		RequiredPermissions: []string{"read", "paid"},
		Params: []ParamRule{
			{Index: 0, Name: "minconf", ParamType: TypeInteger, Required: false,
				Constraints: []Constraint{{MinValue: floatPtr(0)}}},
		},
		CacheTTLOverrideSecs: 5,
	},
	{
		Name:          "getbalance",
		ReadOnly:      true,
		SecurityLevel: LevelAuthenticated,
		Enabled:       true,
		RequiredPermissions: []string{"read", "paid"},
		Params:               nil,
		CacheTTLOverrideSecs: 5,
	},

	// --- utility ---
	{
		Name:          "estimatefee",
		ReadOnly:      true,
		SecurityLevel: LevelPublic,
		Enabled:       true,
		Params: []ParamRule{
			{Index: 0, Name: "conf_target", ParamType: TypeInteger, Required: true,
				Constraints: []Constraint{{MinValue: floatPtr(1), MaxValue: floatPtr(1000)}}},
		},
	},
	{
		Name:          "validatechallenge",
		ReadOnly:      true,
		SecurityLevel: LevelPrivileged,
		Enabled:       false, // reserved; internal diagnostic, intentionally not exposed
		RequiredPermissions: []string{"admin"},
		Params:               nil,
	},
}

func intPtr(v int) *int          { return &v }
func floatPtr(v float64) *float64 { return &v }
