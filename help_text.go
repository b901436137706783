package main

const helpPlayback = `
p     play/pause
>     next item
<     previous item
-/=   volume down/volume up
,/.   seek -10/+10 seconds
m     mute/unmute (local only)
ENTER play selected queue item
`

const helpDevices = `
a     become the active player here
t     transfer playback to another device

When another device is the active player,
the playback keys control it remotely;
only mute stays local.
`
