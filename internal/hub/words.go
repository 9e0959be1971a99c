package hub

var movements = []string{
	"wave", "spin", "leap", "twirl", "stretch", "bow", "sway", "jump", "skip", "hop",
	"glide", "dash", "pivot", "lunge", "shimmy", "stomp", "strut", "tiptoe", "roll", "slide",
}

var dances = []string{
	"tango", "salsa", "waltz", "polka", "samba", "rumba", "mambo", "bolero", "foxtrot", "jive",
	"ballet", "disco", "swing", "hula", "flamenco", "bachata", "zumba", "twist", "conga", "cancan",
}

var critters = []string{
	"otter", "panda", "koala", "heron", "lemur", "gecko", "puffin", "badger", "ferret", "falcon",
	"walrus", "beaver", "marmot", "ibis", "tapir", "quokka", "narwhal", "wombat", "bison", "crane",
}

var colors = []string{
	"amber", "coral", "indigo", "jade", "lilac", "maroon", "ochre", "plum", "ruby", "sage",
	"teal", "umber", "violet", "azure", "cobalt", "ivory", "olive", "scarlet", "topaz", "saffron",
}

var moods = []string{
	"happy", "brave", "calm", "eager", "jolly", "lively", "merry", "proud", "sunny", "zesty",
	"bold", "breezy", "cosy", "dreamy", "gentle", "nimble", "plucky", "quiet", "snappy", "witty",
}

var wordLists = [][]string{movements, dances, critters, colors, moods}
