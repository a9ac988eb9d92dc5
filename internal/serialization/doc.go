// Package serialization stores model and optimizer state in checkpoint
// files.
//
// Layout, all integers little-endian:
//
//	[4 bytes]  magic "DGRD"
//	[4 bytes]  format version (uint32)
//	[8 bytes]  header length N (uint64)
//	[N bytes]  JSON Header
//	[data]     tensor bytes, concatenated in sorted-name order
//	[32 bytes] SHA-256 of header JSON followed by data
//
// Tensor bytes are the in-memory representation of the host, which is
// little-endian on every platform the CPU backend targets.
//
//	err := serialization.Save("model.dgrd", model.StateDict(), serialization.Header{ModelType: "classifier"})
//	f, err := serialization.Load("model.dgrd")
//	err = model.LoadStateDict(f.Tensors)
//
// ExportSafeTensors writes the same tensors in the SafeTensors layout for
// other tooling.
package serialization
