// Package lua runs event handlers written in Lua.
//
// Each Plugin loads one script into a sandboxed gopher-lua State. The State
// opens only the base, table, string and math libraries, removes the
// functions that load code from disk, and bounds every call with a
// context deadline.
//
// Scripts register handlers through the events table:
//
//	events.on("buffer.save", function(evt, self)
//	    if evt:get("path") == "" then
//	        evt:cancel()
//	    end
//	end, { priority = "high", name = "guard" })
//
//	events.once("app.ready", function(evt)
//	    events.log("ready")
//	end, { delay = 0 })
//
// Handlers are attached to the plugin's own container, so Unload and Reload
// detach exactly the executors the script created. A State is not safe for
// concurrent use by gopher-lua itself; every entry point serialises on the
// State's mutex.
package lua
