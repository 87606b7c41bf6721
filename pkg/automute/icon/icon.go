// Package icon holds the tray and notification icons as byte arrays.
package icon

//go:generate sh -c "2goarray AutomuteLogo icon < ../../../assets/automute.ico > automute_logo.go"
