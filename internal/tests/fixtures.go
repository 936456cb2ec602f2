package tests

// Demo key material shared by unit tests. The SS58 strings, the transparent
// account and the meta_call encoding are taken from the chain module's own
// tests. The cheque encodings and typed data digests further down were
// produced by this repository and are pinned as regression values.
const (
	DemoPrivateKeyHex            = "0x415ac5b1b9c3742f85f2536b1eb60a03bf64a590ea896b087182f9c92f41ea12"
	DemoCompressedPublicKeyHex   = "0x027cf2fa7bfe66adad4149481ff86794ce7e1ab2f7ed615ad3918f91581d2c00f1"
	DemoUncompressedPublicKeyHex = "0x7cf2fa7bfe66adad4149481ff86794ce7e1ab2f7ed615ad3918f91581d2c00f1b78639ed0e27ac2990496f3459b2c09ea4d5b3322a0ce7da7ec1fd86f069854c"
	DemoEvmAddressHex            = "0xe66bbb2b28273f4f0307e4c48fa30e304203016c"

	DemoHashBasedAccountIdHex   = "0x3d589a72aacea3f5f98494fdb5a7c3c70296b2410fa7552444d0206f61aa8e91"
	DemoHashBasedSS58           = "5DT96geTS2iLpkH8fAhYAAphNpxddKCV36s5ShVFavf1xQiF"
	DemoTransparentAccountIdHex = "0xe66bbb2b28273f4f0307e4c48fa30e304203016c4065766d5f61646472657373"
	DemoTransparentSS58         = "5HGpsccWWjbjkMygqmwa7q284kSpC6MAqqKB2W7EKwxPsGCz"

	DemoSponsorMnemonic = "safe potato popular make machine love horse quantum stuff pottery physical identify"

	// System.remark_with_event("Hello") on the development runtime
	RemarkCallHex     = "0x00071448656c6c6f"
	RemarkCallHashHex = "0xb27a921640973ec86773a70d554c88ac71e929a4b12327cb61c9cb1b2364bba3"
)

// Cheque encodings
const (
	// deadline 1000, minimum balance 100e12, only_account demo, nonce 7, call hash remark, max tip 5e12
	FullChequeHex = "0xe803000000407a10f35a00000000000000000000013d589a72aacea3f5f98494fdb5a7c3c70296b2410fa7552444d0206f61aa8e9101070000000000000001b27a921640973ec86773a70d554c88ac71e929a4b12327cb61c9cb1b2364bba3005039278c0400000000000000000000"
	// deadline 10, minimum balance 1e12, no restrictions
	DefaultChequeHex = "0x0a0000000010a5d4e8000000000000000000000000000000000000000000000000000000000000"
	// deadline 1000, minimum balance 100e12, only_account demo, call hash remark
	DemoChequeHex = "0xe803000000407a10f35a00000000000000000000013d589a72aacea3f5f98494fdb5a7c3c70296b2410fa7552444d0206f61aa8e910001b27a921640973ec86773a70d554c88ac71e929a4b12327cb61c9cb1b2364bba300000000000000000000000000000000"
	// DemoChequeHex signed with an sr25519 signature of 0x11 bytes by signer 0x22..22
	DemoSignedChequeHex = DemoChequeHex +
		"01" +
		"11111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111" +
		"2222222222222222222222222222222222222222222222222222222222222222"
)

// Typed data hashes for who=DemoHashBasedSS58, callData=RemarkCallHex, nonce 0, tip 0
const (
	SubstrateCallTypeHashHex = "0x9d0d2b715cc00b405022048e107f17dacc532ad076114a7d9adc77b116dfae3c"
	DomainSeparatorV1Hex     = "0x33cfd741b4ab8d7f3c14cfb99f3983220d8915521fdc67c9f90414abf4bc9fe0"
	DomainSeparatorV2Hex     = "0xb96ccb6b21fe9b249ee47bf559fb83093150cfbf3c92b41c13d1b75c0cb5e113"
	DigestV1NoChequeHex      = "0xcff7dcf28e3090132961428678c02f407692b2a313725bf57d2a56c5edf0cb78"
	DigestV1SignedChequeHex  = "0x8f6c8d7c97c88c0127ad226e3e4caa71da8fd315c9451225abedc58fe2452944"
	DigestV2NoChequeHex      = "0x6b2a633f5914c9e7a5e4335d0f0625c82759167d1d4878e56556a594d3c29835"
	DigestV2SignedChequeHex  = "0xb03f350f230343c515e29f88cd8acc59b5add13fa8d5f3962aea238e4d379017"
)

// Vectors from the chain module's tests, signed by the demo key
const (
	// The chain module's test hashes a four field struct (type hash, who,
	// callData, nonce) that leaves out tip and preSignedCheque, so this is not
	// the digest BuildTypedData produces for the same call.
	ChainModuleDigestHex    = "0xde89327108e398b80d31395f277d591eb62c5a660f3ad5cbe31deeb4ccc49949"
	ChainModuleDigestSigHex = "0x45b10ab26c36fa1f5c48b1e98413a1710617f5df5bf0ad9d6c6ae357e27d6bb8210a8a4320a84b9663d3046e980daf0a1c54821c0f2809f6c1cbb98b229d33471b"

	// personal_sign over "0x" + hex("Hello world !!!")
	PersonalMessage       = "Hello world !!!"
	PersonalMessageSigHex = "0x838e8f298833f476bc871b175efcccba5c3cda88b1deab9f124aeed6cd095dea1ee3a0c88ae98ce7a3cccb5328db60bb7c9706f9c5593975d52f3ad4371ed92f1b"
)
