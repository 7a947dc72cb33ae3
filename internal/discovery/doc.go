/*
Package discovery finds candidate media paths on the local machine.

Two sources are provided:

  - Command runs the platform's native search index (Spotlight's mdfind on
    darwin, DS.exe over Windows Search on windows) and emits one path per
    output line. Native returns the discoverer for the running platform;
    on other platforms it reports itself unavailable and the scan scheduler
    relies on its fallback walk.
  - Watcher follows fsnotify events below a set of roots and emits files
    as they are created or renamed into place. New directories are added
    to the watch list as they appear.

Neither source filters what it emits: candidate filtering happens in
ingestion.
*/
package discovery
