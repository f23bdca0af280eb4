package model

// DiscriminatorType selects the architecture of the discriminator head.
type DiscriminatorType int

const (
	// DiscriminatorPatch scores each patch of the (image, mask) pair (PatchGAN style); the loss
	// averages over all patches.
	DiscriminatorPatch DiscriminatorType = iota

	// DiscriminatorGlobal pools the features over the whole image and outputs one score per pair.
	DiscriminatorGlobal
)

//go:generate go tool enumer -type=DiscriminatorType -trimprefix=Discriminator -transform=snake -values -text -json -yaml discriminatortype.go
