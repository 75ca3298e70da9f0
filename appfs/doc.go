// Package appfs implements the application filesystem header codec and the
// page-aligned streaming installer that writes binaries into /app/flash and
// /app/ram.
//
// # Header round-trip
//
//	attrs, err := appfs.FileAttributesFromFile(f)
//	attrs.RamSize = 8192
//	err = appfs.ApplyFileAttributes(f, attrs)
//
// # Installing a binary
//
//	inst, err := appfs.NewInstaller(client, appfs.Construct{
//	    Name:       "blink",
//	    Executable: true,
//	})
//	defer inst.Close()
//	err = inst.Append(src, srcSize, 0, nil)
package appfs
