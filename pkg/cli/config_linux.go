package cli

// Follows the XDG layout; the file backend expands the leading ~.
const keyringDirectory = "~/.local/share/carnet/keys"
