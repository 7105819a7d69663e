package ui

// iconBytes is the 16x16 tray icon (PNG).
var iconBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff, 0x61, 0x00, 0x00, 0x00,
	0x2e, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda, 0x63, 0xd0, 0xd0, 0x30, 0xf8,
	0x4f, 0x09, 0x66, 0x00, 0x11, 0x30, 0xf0, 0x69, 0x99, 0x15, 0x51, 0x18,
	0x06, 0xe0, 0x06, 0xc0, 0x30, 0xb1, 0x06, 0x60, 0xb8, 0x80, 0x62, 0x03,
	0x46, 0xbd, 0x30, 0xea, 0x85, 0x61, 0xe6, 0x05, 0x72, 0x30, 0x00, 0xbc,
	0x94, 0x69, 0xbb, 0x4c, 0x54, 0xc4, 0x90, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}
