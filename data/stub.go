package data

// KindStub marks a Choice alternative that carries no payload (an
// argument-less call or an empty result). Its own Kind-dispatch functions
// are never invoked directly — choiceFromJSON/choiceToJSON special-case
// KindStub before reaching the generic per-kind switch — this file exists
// only so the Kind has a home and a comment explaining why there is no
// stubFromJSON/stubToJSON pair to find.
