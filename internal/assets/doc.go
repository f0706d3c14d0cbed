// Package assets resolves user-supplied media references against the asset
// library on disk.
//
// The library is laid out as:
//
//	<assets_dir>/characters/<ref>/<pose>.png   pose images, optional character.toml
//	<assets_dir>/backgrounds/[<style>/]<name>  still images or video loops
//	<assets_dir>/music/[<style>/]<name>        audio beds
//
// Every lookup validates the file it returns: extension, size, and for
// images a successful header decode. Failures wrap services.ErrAssetNotFound
// so the pipeline can classify them. Resolution only reads; Import is the
// sole writer and copies files in with integrity verification.
package assets
