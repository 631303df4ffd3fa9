package scraper

import (
	"encoding/json"
	"fmt"

	"github.com/ibeckermayer/xmedia/internal/dom"
)

// annotateJS records computed background images and marks the target.
// Arguments: selector, index, activated attribute, background attribute.
const annotateJS = `
	(function(sel, idx, act, bg) {
		document.querySelectorAll('[' + act + ']').forEach(el => el.removeAttribute(act));

		document.querySelectorAll('body *').forEach(el => {
			const v = getComputedStyle(el).backgroundImage;
			if (v && v !== 'none' && v.includes('url(')) {
				el.setAttribute(bg, v);
			}
		});

		const el = document.querySelectorAll(sel)[idx];
		if (!el) return false;
		el.setAttribute(act, 'true');
		return true;
	})(%s, %d, %s, %s)
`

const pauseScript = `
	(function() {
		let n = 0;
		document.querySelectorAll('video').forEach(v => {
			if (!v.paused) {
				v.pause();
				n++;
			}
		});
		return n;
	})()
`

func annotateScript(t Target) (string, error) {
	args := make([]string, 0, 3)
	for _, s := range []string{t.Selector, dom.ActivatedAttr, dom.BackgroundAttr} {
		b, err := json.Marshal(s)
		if err != nil {
			return "", fmt.Errorf("failed to encode script argument: %w", err)
		}
		args = append(args, string(b))
	}
	index := t.Index
	if index < 0 {
		index = 0
	}
	return fmt.Sprintf(annotateJS, args[0], index, args[1], args[2]), nil
}
