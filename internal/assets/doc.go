// Package assets implements the asset pipeline steps that turn a game export
// bundle into web-ready images and a packaged database.
//
// Steps and their dependencies:
//
//	extract
//	images    <- extract
//	icons     <- images
//	whites    <- icons
//	atlas     <- icons
//	groups    <- extract
//	database  <- extract
//	package   <- whites, atlas, groups, database
//	publish   <- package (only when publishing is configured)
//
// Work directory layout:
//
//	<work>/export/images/*.png   extracted images, overrides applied
//	<work>/export/data/*.json    extracted data tables
//	<work>/icons/*.png           downscaled icons
//	<work>/whites/*.png          white silhouettes of the icons
//	<work>/atlas.png, atlas.json sprite sheet and its index
//	<work>/groups.json           icons grouped by category prefix
//	<work>/database.zip          merged data tables
package assets
